package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/indexing/recovery"
	"github.com/vietddude/addrindex/internal/infra/storage"
)

var (
	errAddressNotFound = errors.New("Address not found")
	errAddressRequired = errors.New("address is required")
)

type addressInfo struct {
	Address string         `json:"address"`
	Balance btcutil.Amount `json:"balance"`
}

type pagination struct {
	TotalPages int64                 `json:"totalPages"`
	PageNumber int                   `json:"pageNumber"`
	PageSize   int                   `json:"pageSize"`
	Direction  storage.SortDirection `json:"direction"`
	OrderBy    storage.SortColumn    `json:"orderBy"`
}

type listResponse struct {
	Results    []*domain.Address `json:"results"`
	Pagination pagination        `json:"pagination"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health(r.Context()); err != nil {
			JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAddressInfo(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		ERROR(w, http.StatusBadRequest, errAddressRequired)
		return
	}

	a, err := s.opts.Addresses.Get(r.Context(), address)
	if errors.Is(err, domain.ErrNotFound) {
		ERROR(w, http.StatusNotFound, errAddressNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, addressInfo{Address: a.Address, Balance: a.Balance})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.opts.Status.Status(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, status)
}

func (s *Server) handleSyncSucceed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Invalid values fall back to defaults
	pageSize, err := strconv.Atoi(q.Get("pageSize"))
	if err != nil || pageSize < 1 {
		pageSize = storage.DefaultPageSize
	}
	pageNumber, err := strconv.Atoi(q.Get("pageNumber"))
	if err != nil || pageNumber < 0 {
		pageNumber = 0
	}

	query := storage.ListQuery{
		ListFilter: storage.ListFilter{HasBalance: parseFlag(q.Get("hasBalance"))},
		PageNumber: pageNumber,
		PageSize:   pageSize,
		Direction:  storage.ParseSortDirection(q.Get("direction")),
		OrderBy:    storage.ParseSortColumn(q.Get("orderBy")),
	}.Normalize()

	total, err := s.opts.Addresses.Count(r.Context(), query.ListFilter)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	results, err := s.opts.Addresses.List(r.Context(), query)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	size := int64(query.PageSize)
	JSON(w, http.StatusOK, listResponse{
		Results: results,
		Pagination: pagination{
			TotalPages: (total + size - 1) / size,
			PageNumber: query.PageNumber,
			PageSize:   query.PageSize,
			Direction:  query.Direction,
			OrderBy:    query.OrderBy,
		},
	})
}

func (s *Server) handleSyncFailed(w http.ResponseWriter, r *http.Request) {
	failed, err := s.opts.Failures.GetAll(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, failed)
}

func (s *Server) handleSyncRetry(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Retrier.Retry(r.Context())
	if errors.Is(err, recovery.ErrRetryInProgress) {
		ERROR(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed", "path", r.URL.Path, "error", err)
	ERROR(w, http.StatusInternalServerError, errors.New("internal server error"))
}

func parseFlag(v string) bool {
	if n, err := strconv.Atoi(v); err == nil {
		return n == 1
	}
	b, _ := strconv.ParseBool(v)
	return b
}
