package api

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/swapcore/internal/domain"
	sdkhttp "github.com/betbot/swapcore/pkg/sdk/http"
)

// IndexerClient queries the position indexer. Each call is a fresh query;
// the client does no caching of its own.
type IndexerClient struct {
	http *sdkhttp.Client
}

// NewIndexerClient creates an indexer client for the given base URL
func NewIndexerClient(baseURL string) *IndexerClient {
	return &IndexerClient{
		http: sdkhttp.NewClient(baseURL),
	}
}

// indexerPosition is the wire shape returned by the indexer
type indexerPosition struct {
	ID               string `json:"id"`
	Owner            string `json:"owner"`
	Market           string `json:"market"`
	Side             string `json:"side"`
	Size             string `json:"size"`
	EntryPrice       string `json:"entryPrice"`
	LiquidationPrice string `json:"liquidationPrice"`
	OpenedAt         int64  `json:"openedAt"` // unix seconds
	Status           string `json:"status"`
}

// FetchOpenPositions returns the full set of open positions for an address
func (c *IndexerClient) FetchOpenPositions(ctx context.Context, address string) ([]domain.Position, error) {
	var raw []indexerPosition
	resp, err := c.http.DoRequest(ctx, "GET", "/v1/positions", &sdkhttp.RequestOptions{
		Params: map[string]any{
			"owner":  address,
			"status": "open",
		},
	}, &raw)
	if err := sdkhttp.ParseHTTPError(resp, err); err != nil {
		return nil, errors.Wrapf(domain.ErrIndexerFetchFailed, "owner=%s: %v", address, err)
	}

	out := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		pos, err := p.toDomain()
		if err != nil {
			// Malformed rows are skipped rather than failing the whole snapshot
			continue
		}
		out = append(out, pos)
	}
	return out, nil
}

func (p indexerPosition) toDomain() (domain.Position, error) {
	size, err := decimal.NewFromString(p.Size)
	if err != nil {
		return domain.Position{}, errors.Wrap(err, "size")
	}

	// entry/liquidation prices are optional: positions missing either are
	// carried through with zero and skipped by risk evaluation
	entry := decimal.Zero
	if p.EntryPrice != "" {
		if entry, err = decimal.NewFromString(p.EntryPrice); err != nil {
			return domain.Position{}, errors.Wrap(err, "entryPrice")
		}
	}
	liq := decimal.Zero
	if p.LiquidationPrice != "" {
		if liq, err = decimal.NewFromString(p.LiquidationPrice); err != nil {
			return domain.Position{}, errors.Wrap(err, "liquidationPrice")
		}
	}

	side := domain.PositionSideLong
	if p.Side == "short" {
		side = domain.PositionSideShort
	}
	status := domain.PositionStatusOpen
	if p.Status == "closed" {
		status = domain.PositionStatusClosed
	}

	return domain.Position{
		ID:               p.ID,
		OwnerAddress:     p.Owner,
		Market:           p.Market,
		Side:             side,
		Size:             size,
		EntryPrice:       entry,
		LiquidationPrice: liq,
		OpenedAt:         time.Unix(p.OpenedAt, 0),
		Status:           status,
	}, nil
}
