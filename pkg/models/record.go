package models

import (
	"time"
)

// Record is one row flowing through the automation pipeline: fetched
// from the external API, cleaned, transformed and stored.
type Record struct {
	ID          string    `json:"id"`
	DataType    string    `json:"data_type"`
	Category    string    `json:"category"`
	Value       float64   `json:"value"`
	ValueNorm   *float64  `json:"value_normalized,omitempty"`
	ValueBand   string    `json:"value_band,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
	Year        int       `json:"year,omitempty"`
	Month       int       `json:"month,omitempty"`
	Day         int       `json:"day,omitempty"`
	Weekday     int       `json:"weekday,omitempty"`
	ProcessedAt time.Time `json:"processed_at,omitempty"`
}

// FetchResponse is the envelope returned by the external data API.
type FetchResponse struct {
	IsSuccess bool     `json:"isSuccess"`
	Message   string   `json:"message"`
	Data      []Record `json:"data"`
}
