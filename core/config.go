package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		BodyLimit                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	LogConfig struct {
		File       string // empty: stdout only
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}

	UploadConfig struct {
		Dir      string
		MaxBytes int64
	}

	RealtimeConfig struct {
		PingInterval time.Duration
		WriteTimeout time.Duration
		SendBuffer   int
	}

	GameConfig struct {
		StartingCoins int
		CatalogPath   string // empty: embedded catalog
	}

	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		WorkDir          string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Log      LogConfig
		Upload   UploadConfig
		Realtime RealtimeConfig
		Game     GameConfig
	}
)

// Address returns the database "host:port".
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "EduFarm")
	v.SetDefault("secretKey", "x7#n1k@9w!q3$edufarm-dev-secret)c&2v")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "EduFarm <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverBodyLimit", "12M")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*7*24*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "edufarm")
	v.SetDefault("dbUser", "edufarm")
	v.SetDefault("dbPassword", "edufarm")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("logFile", "")
	v.SetDefault("logMaxSizeMB", 50)
	v.SetDefault("logMaxBackups", 5)
	v.SetDefault("logMaxAgeDays", 28)

	v.SetDefault("uploadDir", filepath.Join(os.TempDir(), "edufarm-uploads"))
	v.SetDefault("uploadMaxBytes", int64(10<<20))

	v.SetDefault("realtimePingInterval", 30*time.Second)
	v.SetDefault("realtimeWriteTimeout", 10*time.Second)
	v.SetDefault("realtimeSendBuffer", 32)

	v.SetDefault("gameStartingCoins", 50)
	v.SetDefault("gameCatalogPath", "")
}

// NewConfig reads the configuration for the current ENV.
// Environment variables are prefixed with the ENV name, eg: PROD_SECRETKEY.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()
	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return fromViper(v, env, wd)
}

func fromViper(v *viper.Viper, env, wd string) *Config {
	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		WorkDir:                   wd,
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Address:                   v.GetString("serverAddress"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			BodyLimit:                 v.GetString("serverBodyLimit"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Log: LogConfig{
			File:       v.GetString("logFile"),
			MaxSizeMB:  v.GetInt("logMaxSizeMB"),
			MaxBackups: v.GetInt("logMaxBackups"),
			MaxAgeDays: v.GetInt("logMaxAgeDays"),
		},
		Upload: UploadConfig{
			Dir:      v.GetString("uploadDir"),
			MaxBytes: v.GetInt64("uploadMaxBytes"),
		},
		Realtime: RealtimeConfig{
			PingInterval: v.GetDuration("realtimePingInterval"),
			WriteTimeout: v.GetDuration("realtimeWriteTimeout"),
			SendBuffer:   v.GetInt("realtimeSendBuffer"),
		},
		Game: GameConfig{
			StartingCoins: v.GetInt("gameStartingCoins"),
			CatalogPath:   v.GetString("gameCatalogPath"),
		},
	}
}

// NewTestConfig returns the defaults with TestMode on and an in-memory database.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("testMode", true)
	v.Set("debug", false)
	v.Set("dbEngine", "memory")
	v.Set("secretKey", "secret")
	conf := fromViper(v, "TEST", "")
	conf.Upload.Dir = filepath.Join(os.TempDir(), fmt.Sprintf("edufarm-test-uploads-%d", os.Getpid()))
	return conf
}
