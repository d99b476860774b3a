package sourcecfg

import (
	"fmt"
)

type MYSQL struct {
	TableList    []string `json:"table_list" mapstructure:"table_list"`
	Host         string   `json:"host" mapstructure:"host"`
	UserName     string   `json:"user_name" mapstructure:"user_name"`
	Password     string   `json:"password" mapstructure:"password"`
	Port         int      `json:"port" mapstructure:"port"`
	DB           string   `json:"db" mapstructure:"db"`
	QueryLogging bool     `json:"query_log" mapstructure:"query_log"`
}

func (m *MYSQL) GetDSN() string {
	return fmt.Sprintf(`%s:%s@tcp(%s:%d)/%s?parseTime=true&collation=utf8mb4_general_ci&autocommit=true`, m.UserName, m.Password, m.Host, m.Port, m.DB)
}
