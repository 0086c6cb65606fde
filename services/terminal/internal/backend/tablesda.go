package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/appetiteclub/pos/services/terminal/internal/tables"
	"github.com/aquamarinepk/aqm"
)

type positionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type mergeRequest struct {
	RootID   string   `json:"root_id"`
	TableIDs []string `json:"table_ids"`
}

// TableDataAccess centralizes decoding of floor responses.
type TableDataAccess struct {
	client Requester
}

func NewTableDataAccess(client Requester) *TableDataAccess {
	return &TableDataAccess{client: client}
}

func (da *TableDataAccess) ListSections(ctx context.Context) ([]tables.Section, error) {
	if da == nil || da.client == nil {
		return nil, ErrNotConfigured
	}

	resp, err := da.client.Request(ctx, http.MethodGet, "/sections", nil)
	if err != nil {
		return nil, err
	}

	var sections []tables.Section
	if err := decodeSuccessResponse(resp, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func (da *TableDataAccess) ListTables(ctx context.Context) ([]tables.Table, error) {
	if da == nil || da.client == nil {
		return nil, ErrNotConfigured
	}

	resp, err := da.client.Request(ctx, http.MethodGet, "/tables", nil)
	if err != nil {
		return nil, err
	}

	var list []tables.Table
	if err := decodeSuccessResponse(resp, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (da *TableDataAccess) UpdatePosition(ctx context.Context, id string, pos tables.Position) (tables.Table, error) {
	if da == nil || da.client == nil {
		return tables.Table{}, ErrNotConfigured
	}

	path := fmt.Sprintf("/tables/%s/position", url.PathEscape(id))
	resp, err := da.client.Request(ctx, http.MethodPatch, path, positionRequest{X: pos.X, Y: pos.Y})
	if err != nil {
		return tables.Table{}, err
	}

	var t tables.Table
	if err := decodeSuccessResponse(resp, &t); err != nil {
		return tables.Table{}, err
	}
	return t, nil
}

func (da *TableDataAccess) Merge(ctx context.Context, rootID string, others []string) ([]tables.Table, error) {
	if da == nil || da.client == nil {
		return nil, ErrNotConfigured
	}

	resp, err := da.client.Request(ctx, http.MethodPost, "/tables/merge", mergeRequest{RootID: rootID, TableIDs: others})
	if err != nil {
		return nil, err
	}
	return decodeTables(resp)
}

func (da *TableDataAccess) Split(ctx context.Context, id string) ([]tables.Table, error) {
	if da == nil || da.client == nil {
		return nil, ErrNotConfigured
	}

	path := fmt.Sprintf("/tables/%s/split", url.PathEscape(id))
	resp, err := da.client.Request(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeTables(resp)
}

func decodeTables(resp *aqm.SuccessResponse) ([]tables.Table, error) {
	var list []tables.Table
	if resp == nil || resp.Data == nil {
		return list, nil
	}
	if err := decodeSuccessResponse(resp, &list); err != nil {
		return nil, err
	}
	return list, nil
}
