package targetcfg

import "fmt"

type Postgres struct {
	Host         string `json:"host" mapstructure:"host"`
	UserName     string `json:"user_name" mapstructure:"user_name"`
	Password     string `json:"password" mapstructure:"password"`
	Port         int    `json:"port" mapstructure:"port"`
	DB           string `json:"db" mapstructure:"db"`
	Schema       string `json:"schema" mapstructure:"schema"`
	SSLMode      string `json:"ssl_mode" mapstructure:"ssl_mode"`
	QueryLogging bool   `json:"query_log" mapstructure:"query_log"`
}

func (p *Postgres) GetDSN() string {
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", p.Host, p.Port, p.UserName, p.Password, p.DB, ssl)
}
