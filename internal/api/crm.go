package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// SearchRequest is the body of a CRM object search
type SearchRequest struct {
	Limit      int      `json:"limit"`
	After      string   `json:"after,omitempty"`
	Properties []string `json:"properties"`
}

// SearchResponse is one page of a CRM object search
type SearchResponse struct {
	Total   int            `json:"total"`
	Results []SimpleObject `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next,omitempty"`
	} `json:"paging,omitempty"`
}

// SimpleObject is a CRM record as returned by search and batch endpoints
type SimpleObject struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// CreateInput is one record in a batch-create request
type CreateInput struct {
	Properties   map[string]interface{} `json:"properties"`
	Associations []Association          `json:"associations,omitempty"`
}

// Association links a new record to an existing one
type Association struct {
	To    AssociationTarget `json:"to"`
	Types []AssociationType `json:"types"`
}

// AssociationTarget identifies the record on the other side of an association
type AssociationTarget struct {
	ID string `json:"id"`
}

// AssociationType names the association definition to use
type AssociationType struct {
	AssociationCategory string `json:"associationCategory"`
	AssociationTypeID   int    `json:"associationTypeId"`
}

// BatchInput is the body of a batch-create request
type BatchInput struct {
	Inputs []CreateInput `json:"inputs"`
}

// BatchError describes inputs the CRM rejected inside an otherwise accepted batch
type BatchError struct {
	Status   string              `json:"status"`
	Category string              `json:"category"`
	Message  string              `json:"message"`
	Context  map[string][]string `json:"context,omitempty"`
}

// BatchResponse is the result of a batch-create request. A 207 Multi-Status
// answer reports rejected inputs through NumErrors and Errors.
type BatchResponse struct {
	Status    string         `json:"status"`
	Results   []SimpleObject `json:"results"`
	NumErrors int            `json:"numErrors,omitempty"`
	Errors    []BatchError   `json:"errors,omitempty"`
}

// Rejected returns the number of inputs the CRM did not create
func (r *BatchResponse) Rejected() int {
	if r == nil {
		return 0
	}
	if r.NumErrors > 0 {
		return r.NumErrors
	}
	return len(r.Errors)
}

// Err summarises the rejected inputs, or returns nil when every input was created
func (r *BatchResponse) Err() error {
	rejected := r.Rejected()
	if rejected == 0 {
		return nil
	}
	apiErr := &APIError{
		Endpoint:   "batch/create",
		StatusCode: http.StatusMultiStatus,
		Message:    fmt.Sprintf("%d inputs rejected", rejected),
	}
	if len(r.Errors) > 0 {
		apiErr.Category = r.Errors[0].Category
		apiErr.Message = fmt.Sprintf("%s: %s", apiErr.Message, r.Errors[0].Message)
		if body, err := json.Marshal(r.Errors); err == nil {
			apiErr.Body = string(body)
		}
	}
	return apiErr
}

// SearchCompanies fetches one page of companies, returning only the requested properties
func (c *Client) SearchCompanies(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var out SearchResponse
	if err := c.Query(ctx, "crm/v3/objects/companies/search", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BatchCreateCompanies creates up to 100 companies in one call
func (c *Client) BatchCreateCompanies(ctx context.Context, inputs []CreateInput) (*BatchResponse, error) {
	var out BatchResponse
	if err := c.Post(ctx, "crm/v3/objects/companies/batch/create", BatchInput{Inputs: inputs}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BatchCreateObjects creates up to 100 records of a custom object type in one call
func (c *Client) BatchCreateObjects(ctx context.Context, objectType string, inputs []CreateInput) (*BatchResponse, error) {
	if objectType == "" {
		return nil, fmt.Errorf("object type is required")
	}

	endpoint := fmt.Sprintf("crm/v3/objects/%s/batch/create", url.PathEscape(objectType))

	var out BatchResponse
	if err := c.Post(ctx, endpoint, BatchInput{Inputs: inputs}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
