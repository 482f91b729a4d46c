package session

import (
	"time"

	"github.com/google/uuid"
)

type TransferID string

func NewTransferID() TransferID {
	return TransferID(uuid.NewString())
}

// TransferRecord is the history entry for one Start of a Session.
type TransferRecord struct {
	ID         TransferID `json:"id"`
	URL        string     `json:"url"`
	OutputPath string     `json:"output_path"`
	State      State      `json:"state"`
	// ResumedFrom is the length of the output that already existed when the transfer started.
	ResumedFrom     int64     `json:"resumed_from"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	TotalBytes      int64     `json:"total_bytes"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

type Database interface {
	// ListTransfers returns every record, oldest first.
	ListTransfers() ([]TransferRecord, error)
	// WriteTransfer inserts or replaces the record with the same ID.
	WriteTransfer(r *TransferRecord) error
}

// NilDatabase remembers nothing.
type NilDatabase struct{}

var _ Database = NilDatabase{}

func (NilDatabase) ListTransfers() ([]TransferRecord, error) {
	return nil, nil
}

func (NilDatabase) WriteTransfer(*TransferRecord) error {
	return nil
}
