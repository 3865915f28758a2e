package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"

	"kairos/internal/config"
	"kairos/internal/profile"
)

// A well-formed bcrypt hash at cost 10.
const secretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

var envVars = []string{
	"PORT",
	"LOG_LEVEL",
	"DEBUG",
	"KAIROS_SERVER_ADDRESS",
	"KAIROS_PROFILES_ACTIVE",
	"KAIROS_CONSOLE_MAX_ROWS",
	"KAIROS_LOGGING_LEVEL",
	"KAIROS_HTTP_CACHE_TIME_TO_LIVE_IN_DAYS",
}

var _ = Describe("Config", func() {
	var (
		tempDir    string
		originalWD string
	)

	writeConfig := func(name, content string) string {
		path := filepath.Join(tempDir, name)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		var err error
		originalWD, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tempDir)).To(Succeed())

		for _, name := range envVars {
			Expect(os.Unsetenv(name)).To(Succeed())
		}
	})

	AfterEach(func() {
		Expect(os.Chdir(originalWD)).To(Succeed())
		os.RemoveAll(tempDir)
		for _, name := range envVars {
			os.Unsetenv(name)
		}
	})

	Describe("Load", func() {
		Context("without a config file", func() {
			It("should use defaults", func() {
				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.File).To(BeEmpty())
				Expect(cfg.Server.Address).To(Equal(":8080"))
				Expect(cfg.Server.ShutdownTimeout).To(Equal(30 * time.Second))
				Expect(cfg.Profiles.Active).To(Equal(profile.Development))
				Expect(cfg.HTTP.Cache.TimeToLiveInDays).To(Equal(1461))
				Expect(cfg.HTTP.Compression.MinSize).To(Equal(1024))
				Expect(cfg.Console.MaxRows).To(Equal(1000))
				Expect(cfg.Console.PasswordHash).To(BeEmpty())
				Expect(cfg.Metrics.CollectInterval).To(Equal(time.Minute))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelInfo))
				Expect(cfg.Logging.Format).To(Equal(config.LogFormatConsole))
				Expect(cfg.Logging.HealthChecks).To(BeTrue())
				Expect(cfg.Logging.StaticFiles).To(BeFalse())
			})

			It("should derive the cache time to live", func() {
				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.CacheTimeToLive()).To(Equal(1461 * 24 * time.Hour))
			})

			It("should default to the dev profile", func() {
				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.ActiveProfiles().Active()).To(Equal([]string{profile.Development}))
			})
		})

		Context("with a config file in ./config", func() {
			BeforeEach(func() {
				writeConfig("config/config.yaml", `
server:
  address: "127.0.0.1:9090"
  shutdown_timeout: "5s"
profiles:
  active: "prod"
http:
  cache:
    time_to_live_in_days: 30
static:
  dir: "/srv/www"
console:
  max_rows: 50
logging:
  level: "debug"
  format: "json"
`)
			})

			It("should load it", func() {
				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.File).To(HaveSuffix("config.yaml"))
				Expect(cfg.Server.Address).To(Equal("127.0.0.1:9090"))
				Expect(cfg.Server.ShutdownTimeout).To(Equal(5 * time.Second))
				Expect(cfg.ActiveProfiles().IsActive(profile.Production)).To(BeTrue())
				Expect(cfg.HTTP.Cache.TimeToLiveInDays).To(Equal(30))
				Expect(cfg.Static.Dir).To(Equal("/srv/www"))
				Expect(cfg.Console.MaxRows).To(Equal(50))
				Expect(cfg.Logging.Format).To(Equal(config.LogFormatJSON))
			})

			It("should let environment variables override the file", func() {
				os.Setenv("KAIROS_PROFILES_ACTIVE", "dev,fast")
				os.Setenv("KAIROS_CONSOLE_MAX_ROWS", "10")

				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.ActiveProfiles().Active()).To(Equal([]string{"dev", "fast"}))
				Expect(cfg.Console.MaxRows).To(Equal(10))
			})

			It("should let flags override environment variables", func() {
				os.Setenv("KAIROS_PROFILES_ACTIVE", "dev")

				fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
				config.AddFlags(fs)
				Expect(fs.Parse([]string{"--profiles", "prod", "--address", ":7000"})).To(Succeed())

				cfg, err := config.Load(fs)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Profiles.Active).To(Equal("prod"))
				Expect(cfg.Server.Address).To(Equal(":7000"))
			})
		})

		Context("with an explicit config file", func() {
			It("should read it", func() {
				path := writeConfig("custom/kairos.yaml", "console:\n  password_hash: \""+secretHash+"\"\n")

				fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
				config.AddFlags(fs)
				Expect(fs.Parse([]string{"--config", path})).To(Succeed())

				cfg, err := config.Load(fs)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Console.PasswordHash).To(Equal(secretHash))
			})

			It("should fail when it does not exist", func() {
				fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
				config.AddFlags(fs)
				Expect(fs.Parse([]string{"--config", filepath.Join(tempDir, "missing.yaml")})).To(Succeed())

				_, err := config.Load(fs)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with container environment variables", func() {
			It("should accept PORT as a bare port", func() {
				os.Setenv("PORT", "3000")

				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":3000"))
			})

			It("should prefer the prefixed address over PORT", func() {
				os.Setenv("PORT", "3000")
				os.Setenv("KAIROS_SERVER_ADDRESS", ":4000")

				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":4000"))
			})

			It("should accept LOG_LEVEL in any case", func() {
				os.Setenv("LOG_LEVEL", "WARN")

				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelWarn))
			})

			It("should switch to debug when DEBUG is set", func() {
				os.Setenv("LOG_LEVEL", "error")
				os.Setenv("DEBUG", "true")

				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelDebug))
			})

			It("should ignore DEBUG when it is not truthy", func() {
				os.Setenv("DEBUG", "false")

				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelInfo))
			})
		})

		Context("with invalid values", func() {
			DescribeTable("should reject the configuration",
				func(content string) {
					writeConfig("config.yaml", content)
					_, err := config.Load(nil)
					Expect(err).To(HaveOccurred())
				},
				Entry("bad address", "server:\n  address: \"not an address\"\n"),
				Entry("zero cache ttl", "http:\n  cache:\n    time_to_live_in_days: 0\n"),
				Entry("negative compression size", "http:\n  compression:\n    min_size: -1\n"),
				Entry("zero compression size", "http:\n  compression:\n    min_size: 0\n"),
				Entry("bad log level", "logging:\n  level: \"verbose\"\n"),
				Entry("bad log format", "logging:\n  format: \"xml\"\n"),
				Entry("bad profile name", "profiles:\n  active: \"dev, !prod\"\n"),
				Entry("plain text password", "console:\n  password_hash: \"secret\"\n"),
				Entry("too many rows", "console:\n  max_rows: 1000000\n"),
				Entry("tiny collect interval", "metrics:\n  collect_interval: \"10ms\"\n"),
				Entry("empty database path", "database:\n  path: \"\"\n"),
			)
		})
	})
})
