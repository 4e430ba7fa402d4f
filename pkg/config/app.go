package config

var AppVersion = "DEVELOPMENT"

const (
	AppName = "os3000-reader"
	LogFile = "reader.log"
	CfgFile = "config.toml"
	LogsDir = "logs"
)
