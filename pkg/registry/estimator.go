package registry

import (
	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

// CostEstimator estimates the token cost of skill content for records whose
// metadata does not declare one.
type CostEstimator interface {
	EstimateTokens(text string) (int, error)
}

type tiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator returns a CostEstimator backed by the cl100k_base
// encoding. Loading the encoding may fetch its BPE ranks on first use.
func NewTiktokenEstimator() (CostEstimator, error) {
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tiktoken encoding")
	}
	return &tiktokenEstimator{enc: enc}, nil
}

func (e *tiktokenEstimator) EstimateTokens(text string) (int, error) {
	return len(e.enc.Encode(text, nil, nil)), nil
}
