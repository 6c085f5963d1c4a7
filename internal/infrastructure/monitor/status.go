package monitor

import "time"

type Status struct {
	PostgreSQL bool           `json:"postgresql"`
	Redis      bool           `json:"redis"`
	Channels   map[string]int `json:"channels"`
	LastCheck  time.Time      `json:"last_check"`
}
