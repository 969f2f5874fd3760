package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		WorkDir      string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Exam     ExamConfig
	}

	ServerConfig struct {
		Address            string
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Address    string // empty: catalog cache disabled
		CatalogTTL time.Duration
	}

	// ExamConfig holds the institution-wide settings the routine engine runs with.
	ExamConfig struct {
		GlobalExamTime        string // empty: per-entry exam time mode
		DefaultExamTime       string
		DefaultDuration       int
		DefaultMaxMarks       int
		DefaultPassPercentage int
		MergeMaxRetries       int
		CatalogFile           string
	}
)

func (db DatabaseConfig) Address() string {
	return db.Host + ":" + db.Port
}

func (db DatabaseConfig) URL() string {
	sslMode := "require"
	if db.DisableTLS {
		sslMode = "disable"
	}
	return db.Engine + "://" + db.User + ":" + db.Password + "@" + db.Address() + "/" + db.Name + "?sslmode=" + sslMode
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values are read from the environment, optionally seeded by config/.env.<env>.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Masomo Exams")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "masomo_exams")
	v.SetDefault("database.user", "masomo")
	v.SetDefault("database.password", "masomo")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.catalogTTL", 5*time.Minute)

	v.SetDefault("exam.globalExamTime", "")
	v.SetDefault("exam.defaultExamTime", "09:00")
	v.SetDefault("exam.defaultDuration", 180)
	v.SetDefault("exam.defaultMaxMarks", 100)
	v.SetDefault("exam.defaultPassPercentage", 40)
	v.SetDefault("exam.mergeMaxRetries", 3)
	v.SetDefault("exam.catalogFile", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd, _ := os.Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		WorkDir:      wd,
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Address:    v.GetString("redis.address"),
			CatalogTTL: v.GetDuration("redis.catalogTTL"),
		},
		Exam: ExamConfig{
			GlobalExamTime:        v.GetString("exam.globalExamTime"),
			DefaultExamTime:       v.GetString("exam.defaultExamTime"),
			DefaultDuration:       v.GetInt("exam.defaultDuration"),
			DefaultMaxMarks:       v.GetInt("exam.defaultMaxMarks"),
			DefaultPassPercentage: v.GetInt("exam.defaultPassPercentage"),
			MergeMaxRetries:       v.GetInt("exam.mergeMaxRetries"),
			CatalogFile:           v.GetString("exam.catalogFile"),
		},
	}
}
