package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/ambient-display/internal/common"
	"github.com/i474232898/ambient-display/internal/display"
)

const newsFeed = "news"

// DefaultNewsURL is the Guardian content search endpoint.
const DefaultNewsURL = "https://content.guardianapis.com/search"

// NewsTimeOffset is added to every publication time before display. The upstream
// reports UTC and the display runs one hour ahead; this is a fixed correction, not
// a timezone conversion, so it does not follow daylight saving.
const NewsTimeOffset = time.Hour

// MaxHeadlines caps how many results of one search are kept for the ticker.
const MaxHeadlines = 10

// newsTimeLayout is the publication timestamp format of the content API.
const newsTimeLayout = "2006-01-02T15:04:05Z"

// NewsConfig selects which headlines are fetched and how they are laid out.
type NewsConfig struct {
	BaseURL        string
	APIKey         string
	PageSize       int
	Sections       []string
	HeadlineWidth  int
	BreakerTimeout time.Duration
}

// NewsClient fetches the newest headlines for a fixed set of sections.
type NewsClient struct {
	cfg NewsConfig
	req *requester
}

func NewNewsClient(client *http.Client, cfg NewsConfig) *NewsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNewsURL
	}
	if cfg.PageSize <= 0 || cfg.PageSize > MaxHeadlines {
		cfg.PageSize = MaxHeadlines
	}
	return &NewsClient{
		cfg: cfg,
		req: newRequester(newsFeed, client, cfg.BreakerTimeout),
	}
}

// Fetch returns the raw search response JSON.
func (c *NewsClient) Fetch(ctx context.Context) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, &FetchError{Feed: newsFeed, Err: fmt.Errorf("news api key is not configured")}
	}
	return c.req.get(ctx, func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("api-key", c.cfg.APIKey)
		values.Set("page-size", strconv.Itoa(c.cfg.PageSize))
		values.Set("order-by", "newest")
		if len(c.cfg.Sections) > 0 {
			values.Set("section", strings.Join(c.cfg.Sections, "|"))
		}

		u := fmt.Sprintf("%s?%s", c.cfg.BaseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
}

// Decode turns a search response into display-ready items, newest first.
func (c *NewsClient) Decode(body []byte) ([]display.NewsItem, error) {
	return DecodeNews(body, c.cfg.PageSize, c.cfg.HeadlineWidth)
}

type newsPayload struct {
	Response *struct {
		Status  string `json:"status"`
		Results *[]struct {
			WebTitle           *string `json:"webTitle"`
			SectionName        string  `json:"sectionName"`
			WebPublicationDate *string `json:"webPublicationDate"`
		} `json:"results"`
	} `json:"response"`
}

// DecodeNews keeps at most limit results (never more than MaxHeadlines), wraps each headline at width columns
// and shifts publication times by NewsTimeOffset. An empty result list is valid.
func DecodeNews(body []byte, limit, width int) ([]display.NewsItem, error) {
	var p newsPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &DecodeError{Feed: newsFeed, Err: err}
	}
	if p.Response == nil {
		return nil, missing(newsFeed, "response")
	}
	if p.Response.Status != "" && p.Response.Status != "ok" {
		return nil, &DecodeError{Feed: newsFeed, Field: "response.status", Err: fmt.Errorf("status %q", p.Response.Status)}
	}
	if p.Response.Results == nil {
		return nil, missing(newsFeed, "response.results")
	}

	results := *p.Response.Results
	if limit <= 0 || limit > MaxHeadlines {
		limit = MaxHeadlines
	}
	if len(results) > limit {
		results = results[:limit]
	}

	items := make([]display.NewsItem, 0, len(results))
	for i, r := range results {
		if r.WebTitle == nil {
			return nil, missing(newsFeed, fmt.Sprintf("response.results[%d].webTitle", i))
		}
		if r.WebPublicationDate == nil {
			return nil, missing(newsFeed, fmt.Sprintf("response.results[%d].webPublicationDate", i))
		}
		published, err := time.Parse(newsTimeLayout, *r.WebPublicationDate)
		if err != nil {
			return nil, &DecodeError{Feed: newsFeed, Field: fmt.Sprintf("response.results[%d].webPublicationDate", i), Err: err}
		}

		items = append(items, display.NewsItem{
			Headline:  common.WrapHeadline(*r.WebTitle, width),
			Section:   r.SectionName,
			Published: published.Add(NewsTimeOffset).Truncate(time.Minute),
			Position:  i,
		})
	}
	return items, nil
}
