package api

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

const (
	// MaxRequestSize caps request bodies. A submit-result envelope with a
	// groth16 proof stays well below it.
	MaxRequestSize = 1 << 20

	maxAmountDigits = 40

	defaultPageLimit = 100
	maxPageLimit     = 1000
)

var (
	digitsRegex = regexp.MustCompile(`^[0-9]+$`)

	errInvalidPagination = errors.New("offset and limit must be non-negative integers")
)

// FieldError names the request field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors collects every invalid field of a request.
type FieldErrors []FieldError

func (e *FieldErrors) Add(field string, err error) {
	*e = append(*e, FieldError{Field: field, Message: err.Error()})
}

func (e FieldErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e FieldErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// ParseAddress decodes a bech32 account address.
func ParseAddress(s string) (sdk.AccAddress, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("address is required")
	}
	addr, err := sdk.AccAddressFromBech32(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	return addr, nil
}

// ParseAmount parses a positive amount of the marketplace denom. The denom
// suffix is optional.
func ParseAmount(s string) (math.Int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), types.DefaultDenom)
	if s == "" {
		return math.Int{}, errors.New("amount is required")
	}
	if len(s) > maxAmountDigits || !digitsRegex.MatchString(s) {
		return math.Int{}, fmt.Errorf("amount %q is not a whole number of %s", s, types.DefaultDenom)
	}
	v, ok := math.NewIntFromString(s)
	if !ok || !v.IsPositive() {
		return math.Int{}, fmt.Errorf("amount %q must be positive", s)
	}
	return v, nil
}

// ParseJobID parses a job id path parameter. Ids start at zero.
func ParseJobID(s string) (uint64, error) {
	if !digitsRegex.MatchString(s) {
		return 0, fmt.Errorf("job id %q must be a non-negative integer", s)
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("job id %q: %w", s, err)
	}
	return id, nil
}

// JobQuery is the parsed query string of GET /v1/jobs.
type JobQuery struct {
	Status    *types.JobStatus
	Requester sdk.AccAddress
	Page      PaginationParams
}

// Matches reports whether job passes the status and requester filters.
func (q JobQuery) Matches(job types.Job) bool {
	if q.Status != nil && job.Status != *q.Status {
		return false
	}
	return q.Requester == nil || job.Requester == q.Requester.String()
}

func parseJobQuery(c *gin.Context) (JobQuery, error) {
	var q JobQuery
	if err := c.ShouldBindQuery(&q.Page); err != nil || q.Page.Offset < 0 || q.Page.Limit < 0 {
		return q, errInvalidPagination
	}
	switch {
	case q.Page.Limit == 0:
		q.Page.Limit = defaultPageLimit
	case q.Page.Limit > maxPageLimit:
		q.Page.Limit = maxPageLimit
	}

	var errs FieldErrors
	if raw := c.Query("status"); raw != "" {
		status, err := types.ParseJobStatus(raw)
		if err != nil {
			errs.Add("status", err)
		} else {
			q.Status = &status
		}
	}
	if raw := c.Query("requester"); raw != "" {
		addr, err := ParseAddress(raw)
		if err != nil {
			errs.Add("requester", err)
		}
		q.Requester = addr
	}
	return q, errs.Err()
}

// bindJSON decodes a request body bounded by MaxRequestSize.
func bindJSON(c *gin.Context, obj any) error {
	if c.Request.ContentLength > MaxRequestSize {
		return fmt.Errorf("request body larger than %d bytes", MaxRequestSize)
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
