package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFailureMessageLen bounds the stored error message of a failed block.
const MaxFailureMessageLen = 4096

// FailedBlock represents a block that failed processing
type FailedBlock struct {
	BlockNumber int64       `json:"blockNumber"  db:"block_number"`
	FailureType FailureType `json:"failureType"  db:"failure_type"`
	Message     string      `json:"message"      db:"message"`
	RetryCount  int         `json:"retryCount"   db:"retry_count"`
	CreatedAt   time.Time   `json:"createdAt"    db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt"    db:"updated_at"`
}

type FailureType string

const (
	FailureTypeRPC      FailureType = "rpc"
	FailureTypeParsing  FailureType = "parsing"
	FailureTypeDatabase FailureType = "database"
	FailureTypeUnknown  FailureType = "unknown"
)

// NewFailedBlock builds a failure entry for blockNumber from err.
func NewFailedBlock(blockNumber int64, err error) *FailedBlock {
	now := time.Now().UTC()
	return &FailedBlock{
		BlockNumber: blockNumber,
		FailureType: ClassifyFailure(err),
		Message:     TruncateMessage(errMessage(err)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TruncateMessage cuts msg to MaxFailureMessageLen bytes without splitting a
// rune. Invalid UTF-8 is replaced so the message is always storable as text.
func TruncateMessage(msg string) string {
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if len(msg) <= MaxFailureMessageLen {
		return msg
	}
	cut := MaxFailureMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
