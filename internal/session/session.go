// Package session owns the per-user assistant state: teams, knowledge,
// the latest AI results, the match engine and the voice connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tactix/internal/audio"
	"github.com/tactix/internal/knowledge"
	"github.com/tactix/internal/match"
	"github.com/tactix/internal/services/ai"
	"github.com/tactix/internal/services/scraper"
	"github.com/tactix/internal/storage"
	"github.com/tactix/internal/team"
	"github.com/tactix/internal/voice"
	"github.com/tactix/pkg/logger"
)

var (
	// ErrNoReport is returned by operations that need an analysis first.
	ErrNoReport = errors.New("no analysis report yet, run an analysis first")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
)

// Languages are the supported answer languages.
var Languages = []string{"en", "tr"}

// Analyst is the AI service used by a session.
type Analyst interface {
	AnalyzeMatchup(ctx context.Context, my, opp team.Record, notes string, knowledge []string, lang string) (*ai.AnalysisReport, error)
	ScanScreenshot(ctx context.Context, image []byte, mimeType string) (team.ScanResult, error)
	ProcessDocument(ctx context.Context, image []byte, mimeType, filename string) (*ai.DocumentResult, error)
	ProcessText(ctx context.Context, text, source string) (*ai.DocumentResult, error)
	GenerateCoachingGuide(ctx context.Context, report *ai.AnalysisReport, knowledge []string, lang string) (*ai.TutorialGuide, error)
	RunSimulation(ctx context.Context, my, opp team.Record, settings ai.TacticalSettings, lines ai.LineTactics, lang string) (*ai.SimulationResult, error)
}

// VoiceConn is an open voice conversation.
type VoiceConn interface {
	Ask(text string) error
	Close() error
	Done() <-chan struct{}
}

// VoiceDialer opens a voice conversation.
type VoiceDialer func(ctx context.Context, opts voice.Options) (VoiceConn, error)

// DialVoice connects with voice.Connect.
func DialVoice(ctx context.Context, opts voice.Options) (VoiceConn, error) {
	s, err := voice.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Backend          storage.Backend
	AI               Analyst
	Pages            scraper.Fetcher
	Match            match.Options
	Audio            audio.Output
	DialVoice        VoiceDialer
	LiveURL          string
	LiveKey          string
	KeyPrefix        string
	DefaultLanguage  string
	KnowledgePersist bool
}

// Session is the assistant state of one user.
type Session struct {
	userID    string
	deps      *Deps
	teams     *team.Teams
	knowledge *knowledge.Base
	engine    *match.Engine

	mu         sync.Mutex
	language   string
	report     *ai.AnalysisReport
	tutorial   *ai.TutorialGuide
	simulation *ai.SimulationResult
	voice      VoiceConn
	closed     bool
}

// Open hydrates the session of userID from storage.
func Open(ctx context.Context, userID string, deps *Deps) *Session {
	store := team.NewStore(deps.Backend)

	kb := knowledge.New()
	if deps.KnowledgePersist {
		kb = knowledge.Open(ctx, deps.Backend, fmt.Sprintf("%s:%s:knowledge", deps.KeyPrefix, userID))
	}

	lang := deps.DefaultLanguage
	if !validLanguage(lang) {
		lang = "en"
	}

	return &Session{
		userID:    userID,
		deps:      deps,
		teams:     team.LoadTeams(ctx, store, deps.KeyPrefix, userID),
		knowledge: kb,
		engine:    match.NewEngine(deps.Match),
		language:  lang,
	}
}

func validLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// UserID returns the owner of the session.
func (s *Session) UserID() string { return s.userID }

// Teams returns the self/opponent pair.
func (s *Session) Teams() *team.Teams { return s.teams }

// Knowledge returns the knowledge base.
func (s *Session) Knowledge() *knowledge.Base { return s.knowledge }

// Engine returns the match engine.
func (s *Session) Engine() *match.Engine { return s.engine }

// Language returns the answer language.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetLanguage changes the answer language.
func (s *Session) SetLanguage(lang string) error {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if !validLanguage(lang) {
		return fmt.Errorf("unsupported language %q", lang)
	}
	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()
	return nil
}

// Report returns the latest analysis or nil.
func (s *Session) Report() *ai.AnalysisReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Tutorial returns the latest coaching guide or nil.
func (s *Session) Tutorial() *ai.TutorialGuide {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tutorial
}

// Simulation returns the latest simulation or nil.
func (s *Session) Simulation() *ai.SimulationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulation
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Analyze requests a new report. On success the previous coaching guide
// and simulation are dropped and any running match is cancelled.
func (s *Session) Analyze(ctx context.Context, notes string) (*ai.AnalysisReport, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	report, err := s.deps.AI.AnalyzeMatchup(ctx, s.teams.Get(team.Self), s.teams.Get(team.Opponent),
		notes, s.knowledge.FlattenToContext(), s.Language())
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	s.mu.Lock()
	s.report = report
	s.tutorial = nil
	s.simulation = nil
	s.mu.Unlock()

	s.engine.Cancel()
	return report, nil
}

// Scan reads a screenshot and merges it into side. A failed scan leaves
// the record untouched.
func (s *Session) Scan(ctx context.Context, side team.Side, image []byte, mimeType string) (team.Record, team.ScanResult, error) {
	if err := s.checkOpen(); err != nil {
		return team.Record{}, team.ScanResult{}, err
	}

	scan, err := s.deps.AI.ScanScreenshot(ctx, image, mimeType)
	if err != nil {
		return s.teams.Get(side), scan, fmt.Errorf("scan failed: %w", err)
	}

	r, err := s.teams.ApplyScan(ctx, side, scan)
	if err != nil {
		return r, scan, fmt.Errorf("scan not applied: %w", err)
	}
	return r, scan, nil
}

// AddDocument extracts knowledge from a document image.
func (s *Session) AddDocument(ctx context.Context, image []byte, mimeType, filename string) (knowledge.Insight, error) {
	if err := s.checkOpen(); err != nil {
		return knowledge.Insight{}, err
	}

	doc, err := s.deps.AI.ProcessDocument(ctx, image, mimeType, filename)
	if err != nil {
		return knowledge.Insight{}, fmt.Errorf("document processing failed: %w", err)
	}
	return s.addInsight(ctx, filename, doc)
}

// AddWebPage imports a tactical article and extracts knowledge from it.
func (s *Session) AddWebPage(ctx context.Context, url string) (knowledge.Insight, error) {
	if err := s.checkOpen(); err != nil {
		return knowledge.Insight{}, err
	}
	if s.deps.Pages == nil {
		return knowledge.Insight{}, fmt.Errorf("web import not available")
	}

	page, err := s.deps.Pages.GetPage(ctx, url)
	if err != nil {
		return knowledge.Insight{}, fmt.Errorf("page import failed: %w", err)
	}

	doc, err := s.deps.AI.ProcessText(ctx, page.Text, page.URL)
	if err != nil {
		return knowledge.Insight{}, fmt.Errorf("document processing failed: %w", err)
	}

	name := page.Title
	if name == "" {
		name = page.URL
	}
	return s.addInsight(ctx, name, doc)
}

func (s *Session) addInsight(ctx context.Context, filename string, doc *ai.DocumentResult) (knowledge.Insight, error) {
	return s.knowledge.Add(ctx, knowledge.Insight{
		Filename:      filename,
		DocumentType:  doc.Type,
		KeyInsights:   doc.KeyInsights,
		TacticalRules: doc.TacticalRules,
	})
}

// RemoveInsight deletes an insight and reports whether it existed.
func (s *Session) RemoveInsight(ctx context.Context, id string) (bool, error) {
	return s.knowledge.Remove(ctx, id)
}

// Coach builds a coaching guide for the current report.
func (s *Session) Coach(ctx context.Context) (*ai.TutorialGuide, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	report := s.Report()
	if report == nil {
		return nil, ErrNoReport
	}

	guide, err := s.deps.AI.GenerateCoachingGuide(ctx, report, s.knowledge.FlattenToContext(), s.Language())
	if err != nil {
		return nil, fmt.Errorf("coaching failed: %w", err)
	}

	s.mu.Lock()
	s.tutorial = guide
	s.mu.Unlock()
	return guide, nil
}

// Simulate runs a simulation with the report's tactics and loads its score
// into the match engine.
func (s *Session) Simulate(ctx context.Context, opts ...match.LoadOption) (*ai.SimulationResult, *match.Run, error) {
	if err := s.checkOpen(); err != nil {
		return nil, nil, err
	}
	report := s.Report()
	if report == nil {
		return nil, nil, ErrNoReport
	}

	plan := report.TacticalBattlePlan
	result, err := s.deps.AI.RunSimulation(ctx, s.teams.Get(team.Self), s.teams.Get(team.Opponent),
		plan.Settings, plan.LineTactics, s.Language())
	if err != nil {
		return nil, nil, fmt.Errorf("simulation failed: %w", err)
	}

	s.mu.Lock()
	s.simulation = result
	s.mu.Unlock()

	score := result.Prediction.Score
	if score == "" {
		score = "0-0"
	}
	return result, s.engine.Load(score, opts...), nil
}

// ToggleVoice connects the voice assistant, or disconnects it when it is
// already connected. It reports whether voice is now active.
func (s *Session) ToggleVoice(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	if conn := s.voice; conn != nil {
		s.voice = nil
		s.mu.Unlock()
		return false, conn.Close()
	}
	lang := s.language
	s.mu.Unlock()

	dial := s.deps.DialVoice
	if dial == nil {
		dial = DialVoice
	}

	conn, err := dial(ctx, voice.Options{
		URL:         s.deps.LiveURL,
		APIKey:      s.deps.LiveKey,
		Language:    lang,
		Instruction: ai.VoiceInstruction(lang),
		Output:      s.deps.Audio,
		OnActive: func(active bool) {
			logger.Log.Debugf("Voice for %s active=%v", s.userID, active)
		},
	})
	if err != nil {
		return false, fmt.Errorf("voice connection failed: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return false, ErrClosed
	}
	s.voice = conn
	s.mu.Unlock()

	go s.watchVoice(conn)
	return true, nil
}

// watchVoice forgets conn once the server ended it.
func (s *Session) watchVoice(conn VoiceConn) {
	<-conn.Done()
	s.mu.Lock()
	if s.voice == conn {
		s.voice = nil
	}
	s.mu.Unlock()
}

// VoiceActive reports whether a voice conversation is open.
func (s *Session) VoiceActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice != nil
}

// Busy reports whether a match is being played or voice is open.
func (s *Session) Busy() bool {
	if s.VoiceActive() {
		return true
	}
	run := s.engine.Current()
	if run == nil {
		return false
	}
	select {
	case <-run.Done():
		return false
	default:
	}
	return run.Snapshot().State == match.Live
}

// Ask sends a typed question to the open voice conversation.
func (s *Session) Ask(text string) error {
	s.mu.Lock()
	conn := s.voice
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("voice is not connected")
	}
	return conn.Ask(text)
}

// Close cancels the running match and closes the voice conversation. It
// is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.voice
	s.voice = nil
	s.mu.Unlock()

	s.engine.Cancel()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
