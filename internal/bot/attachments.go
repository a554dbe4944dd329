package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// maxAttachmentSize caps downloaded images.
const maxAttachmentSize = 10 << 20

// attachmentFetcher downloads images users attach to commands.
type attachmentFetcher struct {
	httpClient *http.Client
}

func newAttachmentFetcher() *attachmentFetcher {
	return &attachmentFetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// attachment returns the attachment passed as the named option.
func attachment(i *discordgo.InteractionCreate, opt *discordgo.ApplicationCommandInteractionDataOption) (*discordgo.MessageAttachment, error) {
	data := i.ApplicationCommandData()
	if opt == nil || data.Resolved == nil {
		return nil, fmt.Errorf("no attachment")
	}
	id, _ := opt.Value.(string)
	att, ok := data.Resolved.Attachments[id]
	if !ok {
		return nil, fmt.Errorf("no attachment")
	}
	return att, nil
}

// Fetch downloads att and returns its bytes and MIME type. Only images are
// accepted.
func (f *attachmentFetcher) Fetch(ctx context.Context, att *discordgo.MessageAttachment) ([]byte, string, error) {
	if !strings.HasPrefix(att.ContentType, "image/") {
		return nil, "", fmt.Errorf("%s is not an image", att.Filename)
	}
	if att.Size > maxAttachmentSize {
		return nil, "", fmt.Errorf("%s is too large (%d bytes)", att.Filename, att.Size)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", att.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download %s: status %d", att.Filename, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", att.Filename, err)
	}
	if len(data) > maxAttachmentSize {
		return nil, "", fmt.Errorf("%s is too large", att.Filename)
	}
	return data, att.ContentType, nil
}
