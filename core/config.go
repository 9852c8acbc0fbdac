package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Port            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		AllowOrigins    []string
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

	SMSConfig struct {
		Enabled  bool
		BaseURL  string
		APIKey   string
		Username string
		SenderID string
	}

	MQTTConfig struct {
		Enabled     bool
		Broker      string
		ClientID    string
		Username    string
		Password    string
		TopicPrefix string
	}

	MongoConfig struct {
		Enabled  bool
		URI      string
		Database string
	}

	Config struct {
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		WorkDir         string
		SecretKey       string
		TrackingBaseURL string
		SendgridApiKey  string
		RollbarToken    string

		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		SMS      SMSConfig
		MQTT     MQTTConfig
		Mongo    MongoConfig
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// DefaultFromEmail parses the configured sender address, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("appName", "Shulebus")
	conf.SetDefault("secretKey", "k3n9-vbq)rx$+21=tz&uoyh7(p!x)#*c4(#wg2h^$dexm5lmo")
	conf.SetDefault("trackingBaseURL", "http://localhost:3000/track")
	conf.SetDefault("defaultFromEmail", "Shulebus <noreply@localhost>")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("serverHost", "0.0.0.0")
	conf.SetDefault("serverPort", "8000")
	conf.SetDefault("serverDebugHost", "0.0.0.0:4000")
	conf.SetDefault("serverReadTimeout", 5*time.Second)
	conf.SetDefault("serverWriteTimeout", 10*time.Second)
	conf.SetDefault("serverShutdownTimeout", 10*time.Second)
	conf.SetDefault("serverAllowOrigins", "*")

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", "5432")
	conf.SetDefault("dbName", "shulebus")
	conf.SetDefault("dbUser", "shulebus")
	conf.SetDefault("dbPassword", "shulebus")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "postgres")
	conf.SetDefault("dbDisableTLS", true)

	conf.SetDefault("smsEnabled", false)
	conf.SetDefault("smsBaseURL", "https://api.africastalking.com")
	conf.SetDefault("smsApiKey", "")
	conf.SetDefault("smsUsername", "")
	conf.SetDefault("smsSenderID", "RRSchool")

	conf.SetDefault("mqttEnabled", false)
	conf.SetDefault("mqttBroker", "tcp://localhost:1883")
	conf.SetDefault("mqttClientID", "shulebus-api")
	conf.SetDefault("mqttUsername", "")
	conf.SetDefault("mqttPassword", "")
	conf.SetDefault("mqttTopicPrefix", "shulebus")

	conf.SetDefault("mongoEnabled", false)
	conf.SetDefault("mongoURI", "mongodb://localhost:27017")
	conf.SetDefault("mongoDatabase", "shulebus")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		AppName:          conf.GetString("appName"),
		WorkDir:          workDir,
		SecretKey:        conf.GetString("secretKey"),
		TrackingBaseURL:  strings.TrimRight(conf.GetString("trackingBaseURL"), "/"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:            conf.GetString("serverHost"),
			Port:            conf.GetString("serverPort"),
			DebugHost:       conf.GetString("serverDebugHost"),
			ReadTimeout:     conf.GetDuration("serverReadTimeout"),
			WriteTimeout:    conf.GetDuration("serverWriteTimeout"),
			ShutdownTimeout: conf.GetDuration("serverShutdownTimeout"),
			AllowOrigins:    strings.Split(conf.GetString("serverAllowOrigins"), ","),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetString("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		SMS: SMSConfig{
			Enabled:  conf.GetBool("smsEnabled"),
			BaseURL:  conf.GetString("smsBaseURL"),
			APIKey:   conf.GetString("smsApiKey"),
			Username: conf.GetString("smsUsername"),
			SenderID: conf.GetString("smsSenderID"),
		},
		MQTT: MQTTConfig{
			Enabled:     conf.GetBool("mqttEnabled"),
			Broker:      conf.GetString("mqttBroker"),
			ClientID:    conf.GetString("mqttClientID"),
			Username:    conf.GetString("mqttUsername"),
			Password:    conf.GetString("mqttPassword"),
			TopicPrefix: conf.GetString("mqttTopicPrefix"),
		},
		Mongo: MongoConfig{
			Enabled:  conf.GetBool("mongoEnabled"),
			URI:      conf.GetString("mongoURI"),
			Database: conf.GetString("mongoDatabase"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests, without reading the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "Shulebus",
		SecretKey:        "secret",
		TrackingBaseURL:  "https://track.test",
		defaultFromEmail: "Shulebus <noreply@test.test>",
		Server: ServerConfig{
			ShutdownTimeout: time.Second,
			AllowOrigins:    []string{"*"},
		},
		SMS: SMSConfig{Enabled: true, SenderID: "RRSchool"},
	}
}
