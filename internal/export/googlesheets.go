package export

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ryanbastic/go-sheetstore/internal/sheet"
	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// GoogleConfig configures the Google Sheets provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string

	// TokenURL and Endpoint override Google's OAuth token endpoint and the
	// Sheets API base URL. Empty means Google's.
	TokenURL string
	Endpoint string

	// Transport is the base transport for API and token calls.
	Transport http.RoundTripper
}

// GoogleSheetsProvider creates a spreadsheet document in the caller's Google
// account and fills it with the snapshot cells. The artifact id is the
// document id.
type GoogleSheetsProvider struct {
	oauth     *oauth2.Config
	endpoint  string
	transport http.RoundTripper
}

func NewGoogleSheetsProvider(cfg GoogleConfig) *GoogleSheetsProvider {
	ep := endpoints.Google
	if cfg.TokenURL != "" {
		ep.TokenURL = cfg.TokenURL
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &GoogleSheetsProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     ep,
			Scopes:       []string{sheets.SpreadsheetsScope},
		},
		endpoint:  cfg.Endpoint,
		transport: transport,
	}
}

func (p *GoogleSheetsProvider) Name() string { return sheet.ProviderGoogleSheets }

func (p *GoogleSheetsProvider) tokenSource(ctx context.Context, creds Credentials) (oauth2.TokenSource, error) {
	switch {
	case creds.AccessToken != "":
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.AccessToken}), nil
	case creds.RefreshToken != "":
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: p.transport})
		return p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}), nil
	default:
		return nil, ErrMissingCredentials
	}
}

func (p *GoogleSheetsProvider) service(ctx context.Context, creds Credentials) (*sheets.Service, error) {
	ts, err := p.tokenSource(ctx, creds)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Transport: &oauth2.Transport{Source: ts, Base: p.transport}}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	return sheets.NewService(ctx, opts...)
}

func (p *GoogleSheetsProvider) Render(ctx context.Context, req Request) (Artifact, error) {
	srv, err := p.service(ctx, req.Credentials)
	if err != nil {
		return Artifact{}, err
	}

	doc, err := srv.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: req.Title},
	}).Context(ctx).Do()
	if err != nil {
		return Artifact{}, fmt.Errorf("create spreadsheet: %w", err)
	}

	if len(req.Cells) > 0 {
		data := make([]*sheets.ValueRange, 0, len(req.Cells))
		for _, c := range req.Cells {
			ref, err := excelize.CoordinatesToCellName(c.Column, c.Row)
			if err != nil {
				return Artifact{}, fmt.Errorf("cell %d,%d: %w", c.Column, c.Row, err)
			}
			data = append(data, &sheets.ValueRange{
				Range:  ref,
				Values: [][]interface{}{{typedValue(c)}},
			})
		}
		_, err = srv.Spreadsheets.Values.BatchUpdate(doc.SpreadsheetId, &sheets.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             data,
		}).Context(ctx).Do()
		if err != nil {
			return Artifact{}, fmt.Errorf("write cells to %s: %w", doc.SpreadsheetId, err)
		}
	}

	return Artifact{ID: doc.SpreadsheetId, URL: doc.SpreadsheetUrl}, nil
}
