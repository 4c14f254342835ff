// Package store records telemetry samples in a SQLite database.
package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/BryanSouza91/castlelink/internal/source"
	"github.com/BryanSouza91/castlelink/telemetry"
)

const schema = `CREATE TABLE IF NOT EXISTS samples (
 id integer NOT NULL PRIMARY KEY AUTOINCREMENT,
 stamp integer, esc integer, link_ok integer,
 voltage double precision, ripple_voltage double precision, current double precision,
 throttle double precision, output_power double precision, rpm double precision,
 bec_voltage double precision, bec_current double precision,
 temperature1 double precision, temperature2 double precision,
 ticks text)`

const insertSample = `INSERT INTO samples (stamp, esc, link_ok, voltage, ripple_voltage, current,
 throttle, output_power, rpm, bec_voltage, bec_current, temperature1, temperature2, ticks)
 VALUES (:stamp, :esc, :link_ok, :voltage, :ripple_voltage, :current,
 :throttle, :output_power, :rpm, :bec_voltage, :bec_current, :temperature1, :temperature2, :ticks)`

// Row is a stored sample.
type Row struct {
	ID            int64   `db:"id"`
	Stamp         int64   `db:"stamp"` // unix milliseconds
	ESC           int     `db:"esc"`
	LinkOK        bool    `db:"link_ok"`
	Voltage       float64 `db:"voltage"`
	RippleVoltage float64 `db:"ripple_voltage"`
	Current       float64 `db:"current"`
	Throttle      float64 `db:"throttle"`
	OutputPower   float64 `db:"output_power"`
	RPM           float64 `db:"rpm"`
	BECVoltage    float64 `db:"bec_voltage"`
	BECCurrent    float64 `db:"bec_current"`
	Temperature1  float64 `db:"temperature1"`
	Temperature2  float64 `db:"temperature2"`
	Ticks         string  `db:"ticks"` // comma separated raw frame ticks
}

// Time returns the sample time.
func (r Row) Time() time.Time {
	return time.UnixMilli(r.Stamp)
}

// Raw parses the stored frame ticks.
func (r Row) Raw() (telemetry.RawData, error) {
	var raw telemetry.RawData
	parts := strings.Split(r.Ticks, ",")
	if len(parts) != telemetry.DataFrameCount {
		return raw, fmt.Errorf("store: row %d: %d ticks", r.ID, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return raw, fmt.Errorf("store: row %d: %w", r.ID, err)
		}
		raw.Ticks[i] = uint16(v)
	}
	return raw, nil
}

func newRow(s source.Sample) Row {
	ticks := make([]string, len(s.Raw.Ticks))
	for i, t := range s.Raw.Ticks {
		ticks[i] = strconv.Itoa(int(t))
	}
	d := s.Data
	return Row{
		Stamp:         s.Time.UnixMilli(),
		ESC:           s.ESC,
		LinkOK:        s.LinkOK,
		Voltage:       float64(d.Voltage),
		RippleVoltage: float64(d.RippleVoltage),
		Current:       float64(d.Current),
		Throttle:      float64(d.Throttle),
		OutputPower:   float64(d.OutputPower),
		RPM:           float64(d.RPM),
		BECVoltage:    float64(d.BECVoltage),
		BECCurrent:    float64(d.BECCurrent),
		Temperature1:  float64(d.Temperature1),
		Temperature2:  float64(d.Temperature2),
		Ticks:         strings.Join(ticks, ","),
	}
}

// Recorder appends samples to a database.
type Recorder struct {
	db *sqlx.DB
}

// Open opens or creates the database at fn.
func Open(fn string) (*Recorder, error) {
	db, err := sqlx.Open("sqlite", fn)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	// One writer; sqlite serialises anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record stores one sample.
func (r *Recorder) Record(s source.Sample) error {
	if _, err := r.db.NamedExec(insertSample, newRow(s)); err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	return nil
}

// Count returns the number of stored samples.
func (r *Recorder) Count() (int64, error) {
	var n int64
	err := r.db.Get(&n, `SELECT count(*) FROM samples`)
	return n, err
}

// Recent returns up to limit of the newest samples of esc, newest first.
func (r *Recorder) Recent(esc, limit int) ([]Row, error) {
	var rows []Row
	err := r.db.Select(&rows, `SELECT * FROM samples WHERE esc = $1 ORDER BY id DESC LIMIT $2`, esc, limit)
	return rows, err
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
