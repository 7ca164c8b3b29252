package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pennypipe/internal/domain"
	"pennypipe/internal/util"
)

const (
	secSubmissionsBaseURL = "https://data.sec.gov/submissions"
	secArchivesBaseURL    = "https://www.sec.gov/Archives/edgar/data"
)

// SECEdgar fetches filing metadata and registrant info from the SEC EDGAR
// submissions API. The SEC documents a 10 req/sec ceiling and requires a
// descriptive User-Agent; a small fixed inter-request delay keeps the client
// comfortably under the ceiling.
type SECEdgar struct {
	userAgent      string
	submissionsURL string
	archivesURL    string
	delay          *util.FixedDelay
	log            *slog.Logger
}

// NewSECEdgar creates a SECEdgar client. A missing User-Agent fails here, at
// construction.
func NewSECEdgar(userAgent string, delay time.Duration) (*SECEdgar, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("sec edgar: SEC_EDGAR_USER_AGENT is not set")
	}
	if delay <= 0 {
		delay = 110 * time.Millisecond
	}
	return &SECEdgar{
		userAgent:      userAgent,
		submissionsURL: secSubmissionsBaseURL,
		archivesURL:    secArchivesBaseURL,
		delay:          util.NewFixedDelay(delay),
		log:            slog.Default().With("provider", domain.SourceSECEdgar),
	}, nil
}

// submissionsResponse mirrors the columnar layout of the submissions API:
// parallel arrays indexed by filing.
type submissionsResponse struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	SIC     string `json:"sic"`
	SICDesc string `json:"sicDescription"`

	Tickers   []string `json:"tickers"`
	Exchanges []string `json:"exchanges"`

	Filings struct {
		Recent struct {
			AccessionNumber       []string `json:"accessionNumber"`
			FilingDate            []string `json:"filingDate"`
			Form                  []string `json:"form"`
			PrimaryDocument       []string `json:"primaryDocument"`
			PrimaryDocDescription []string `json:"primaryDocDescription"`
			Size                  []int64  `json:"size"`
		} `json:"recent"`
	} `json:"filings"`
}

// FetchFilings returns the entity's filing metadata and company info by
// zero-padded CIK. HTTP 404 means the CIK has no filings: an empty result,
// not an error. Any other non-2xx status is an error.
func (c *SECEdgar) FetchFilings(ctx context.Context, paddedCIK string) ([]domain.SECFiling, *domain.CompanyInfo, error) {
	if err := c.delay.Wait(ctx); err != nil {
		return nil, nil, err
	}

	reqURL := fmt.Sprintf("%s/CIK%s.json", c.submissionsURL, paddedCIK)
	headers := map[string]string{"User-Agent": c.userAgent}

	var resp submissionsResponse
	if err := getJSON(ctx, reqURL, headers, &resp); err != nil {
		if IsStatus(err, 404) {
			c.log.Info("no filings", "cik", paddedCIK)
			return nil, nil, nil
		}
		return nil, nil, err
	}

	info := &domain.CompanyInfo{
		CIK:            paddedCIK,
		Name:           resp.Name,
		SIC:            resp.SIC,
		SICDescription: resp.SICDesc,
		Tickers:        resp.Tickers,
		Exchanges:      resp.Exchanges,
	}

	recent := resp.Filings.Recent
	filings := make([]domain.SECFiling, 0, len(recent.AccessionNumber))
	for i := range recent.AccessionNumber {
		f := domain.SECFiling{
			AccessionNumber: recent.AccessionNumber[i],
			DocumentURL:     c.documentURL(paddedCIK, recent.AccessionNumber[i], at(recent.PrimaryDocument, i)),
		}
		if i < len(recent.FilingDate) {
			f.FilingDate = recent.FilingDate[i]
		}
		if i < len(recent.Form) {
			f.Form = recent.Form[i]
		}
		if i < len(recent.PrimaryDocDescription) {
			f.Description = recent.PrimaryDocDescription[i]
		}
		if i < len(recent.Size) {
			f.Size = recent.Size[i]
		}
		filings = append(filings, f)
	}
	return filings, info, nil
}

// documentURL builds the Archives URL for a filing's primary document.
func (c *SECEdgar) documentURL(paddedCIK, accession, primaryDoc string) string {
	numericCIK := strings.TrimLeft(paddedCIK, "0")
	accessionFlat := strings.ReplaceAll(accession, "-", "")
	return fmt.Sprintf("%s/%s/%s/%s", c.archivesURL, numericCIK, accessionFlat, primaryDoc)
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}
