package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tactix/internal/config"
)

func TestLoad(t *testing.T) {
	Convey("Given no config file and no TACTIX_ env", t, func() {
		t.Setenv("TACTIX_CONFIG", "")
		t.Setenv("DISCORD_TOKEN", "legacy-token")

		Convey("When loading", func() {
			cfg, err := config.Load()

			Convey("Then defaults apply and the legacy token is picked up", func() {
				So(err, ShouldBeNil)
				So(cfg.TickInterval(), ShouldEqual, 100*time.Millisecond)
				So(cfg.SettleDelay(), ShouldEqual, 2*time.Second)
				So(cfg.FlavorChance, ShouldEqual, 0.04)
				So(cfg.FeedWindow, ShouldEqual, 4)
				So(cfg.SessionIdle(), ShouldEqual, time.Hour)
				So(cfg.StorageBackend, ShouldEqual, config.BackendFile)
				So(cfg.DiscordToken, ShouldEqual, "legacy-token")
			})
		})
	})

	Convey("Given a YAML file and env overrides", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "tactix.yaml")
		yml := "ai_model: file-model\nfeed_window: 6\nstorage_backend: memory\nsession_idle_minutes: 15\n"
		So(os.WriteFile(path, []byte(yml), 0o600), ShouldBeNil)

		t.Setenv("TACTIX_CONFIG", path)
		t.Setenv("TACTIX_AI_MODEL", "env-model")
		t.Setenv("TACTIX_DISCORD_TOKEN", "tok")

		Convey("When loading", func() {
			cfg, err := config.Load()

			Convey("Then env wins over file and file wins over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.AIModel, ShouldEqual, "env-model")
				So(cfg.FeedWindow, ShouldEqual, 6)
				So(cfg.StorageBackend, ShouldEqual, config.BackendMemory)
				So(cfg.SessionIdle(), ShouldEqual, 15*time.Minute)
				So(cfg.DiscordToken, ShouldEqual, "tok")
			})
		})
	})

	Convey("Given a missing config file", t, func() {
		t.Setenv("TACTIX_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

		Convey("Then Load fails", func() {
			_, err := config.Load()
			So(err, ShouldNotBeNil)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given defaults without secrets", t, func() {
		cfg := config.Defaults()

		Convey("Then validation fails", func() {
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When the secrets are set", func() {
			cfg.DiscordToken = "tok"
			cfg.AIAPIKey = "key"

			Convey("Then validation passes", func() {
				So(cfg.Validate(), ShouldBeNil)
			})

			Convey("But an unknown backend fails", func() {
				cfg.StorageBackend = "sqlite"
				So(cfg.Validate(), ShouldNotBeNil)
			})
		})
	})
}
