package models

import (
	"time"
)

// Record is one product row lifted out of an outlet table. Every field is
// cleaned text; an empty string means the column was not mapped.
type Record struct {
	Price           string `json:"price"`
	Specifications  string `json:"specifications"`
	OSOffice        string `json:"os_office"`
	Memory          string `json:"memory"`
	HDD             string `json:"hdd"`
	VideoController string `json:"video_controller"`
	Others          string `json:"others"`
}

// Run describes one capture or extract invocation.
type Run struct {
	ID          string    `json:"run_id"`
	Target      string    `json:"target"`
	Extractor   string    `json:"extractor,omitempty"`
	Charset     string    `json:"charset,omitempty"`
	RecordCount int       `json:"record_count"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

type Error struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
	URL     string    `json:"url,omitempty"`
}

// Values returns the record fields in column order used by the row sinks.
func (r Record) Values() []any {
	return []any{r.Price, r.Specifications, r.OSOffice, r.Memory, r.HDD, r.VideoController, r.Others}
}

// RecordColumns lists the storage column names matching Values.
var RecordColumns = []string{"price", "specifications", "os_office", "memory", "hdd", "video_controller", "others"}
