package explorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/vietddude/addrindex/internal/core/domain"
)

const statusSuccess = "success"

type blockTxPage struct {
	Status string `json:"status"`
	Data   *struct {
		List      []domain.ExplorerTx `json:"list"`
		PageTotal flexInt            `json:"page_total"`
	} `json:"data"`
}

type addressResponse struct {
	Data *struct {
		Address string     `json:"address"`
		Balance flexAmount `json:"balance"`
	} `json:"data"`
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", b, err)
	}
	*f = flexInt(n)
	return nil
}

// flexAmount decodes a balance. Plain integers are satoshis; decimal or
// exponent notation is read as BTC.
type flexAmount btcutil.Amount

func (f *flexAmount) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	s := string(b)

	// decimal notation is BTC, a plain integer is satoshis
	if !strings.ContainsAny(s, ".eE") {
		sat, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", s, err)
		}
		*f = flexAmount(sat)
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	amt, err := btcutil.NewAmount(v)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*f = flexAmount(amt)
	return nil
}

var _ json.Unmarshaler = (*flexInt)(nil)
var _ json.Unmarshaler = (*flexAmount)(nil)
