package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	postFields  = "message,link,created_time,type,name,id,comments.limit(0).summary(true),shares,reactions.limit(0).summary(true)"
	videoFields = "title,description,created_time,id,comments.limit(0).summary(true),likes.limit(0).summary(true),reactions.limit(0).summary(true),permalink_url,live_status,status"
)

// PostInsightMetrics are the lifetime metrics requested for owned posts.
var PostInsightMetrics = []string{
	"post_consumptions_by_type_unique",
	"post_impressions_by_paid_non_paid_unique",
	"post_video_views",
	"post_impressions_fan_unique",
	"post_negative_feedback_by_type_unique",
}

var reactionTypes = []string{"like", "love", "wow", "haha", "sad", "angry"}

// Client builds Graph API URLs and decodes the responses of the endpoints
// the scraper uses. Every request goes through the shared Doer.
type Client struct {
	doer     Doer
	baseURL  string
	pageSize int
}

// NewClient returns a client rooted at baseURL/v<version>.
func NewClient(baseURL, version string, pageSize int, doer Doer) *Client {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	if pageSize < 1 {
		pageSize = 100
	}
	return &Client{
		doer:     doer,
		baseURL:  strings.TrimRight(baseURL, "/") + "/v" + version,
		pageSize: pageSize,
	}
}

func (c *Client) endpoint(path string, q url.Values) string {
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) feedURL(pageID, edge, fields, token, until string) string {
	q := url.Values{}
	q.Set("fields", fields)
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("access_token", token)
	q.Set("until", until)
	return c.endpoint("/"+url.PathEscape(pageID)+"/"+edge, q)
}

// PostFeed fetches the first page of a page's posts published before until
// (a POSIX timestamp, empty for now).
func (c *Client) PostFeed(ctx context.Context, pageID, token, until string) (*FetchResult, error) {
	return c.doer.Fetch(ctx, c.feedURL(pageID, "posts", postFields, token, until))
}

// VideoFeed fetches the first page of a page's uploaded videos.
func (c *Client) VideoFeed(ctx context.Context, pageID, token, until string) (*FetchResult, error) {
	return c.doer.Fetch(ctx, c.feedURL(pageID, "videos", videoFields, token, until))
}

// Next follows a paging.next URL as returned by the API.
func (c *Client) Next(ctx context.Context, next string) (*FetchResult, error) {
	return c.doer.Fetch(ctx, next)
}

// Reactions is the per-type reaction breakdown of one post.
type Reactions struct {
	Like  int64
	Love  int64
	Wow   int64
	Haha  int64
	Sad   int64
	Angry int64
}

// Reactions fetches the reaction breakdown of a post. Types only exist at
// the individual post endpoint, one aliased summary per type.
func (c *Client) Reactions(ctx context.Context, postID, token string) (*Reactions, error) {
	fields := make([]string, 0, len(reactionTypes))
	for _, t := range reactionTypes {
		fields = append(fields, fmt.Sprintf("reactions.type(%s).limit(0).summary(total_count).as(%s)", strings.ToUpper(t), t))
	}
	q := url.Values{}
	q.Set("fields", strings.Join(fields, ","))
	q.Set("access_token", token)

	res, err := c.doer.Fetch(ctx, c.endpoint("/"+url.PathEscape(postID), q))
	if err != nil {
		return nil, fmt.Errorf("Reactions: %w", err)
	}
	if apiErr := ErrorOf(res); apiErr != nil {
		return nil, fmt.Errorf("Reactions: %w", apiErr)
	}

	counts := make(map[string]int64, len(reactionTypes))
	for _, t := range reactionTypes {
		raw, ok := res.Body[t]
		if !ok {
			continue
		}
		var edge struct {
			Summary struct {
				TotalCount int64 `json:"total_count"`
			} `json:"summary"`
		}
		if err := json.Unmarshal(raw, &edge); err != nil {
			return nil, fmt.Errorf("Reactions: decode %s: %w", t, err)
		}
		counts[t] = edge.Summary.TotalCount
	}
	return &Reactions{
		Like:  counts["like"],
		Love:  counts["love"],
		Wow:   counts["wow"],
		Haha:  counts["haha"],
		Sad:   counts["sad"],
		Angry: counts["angry"],
	}, nil
}

// Insight is one named metric of an insights response.
type Insight struct {
	Name   string `json:"name"`
	Period string `json:"period"`
	Values []struct {
		Value json.RawMessage `json:"value"`
	} `json:"values"`
}

// Value returns the first (lifetime) value of the metric.
func (i Insight) Value() json.RawMessage {
	if len(i.Values) == 0 {
		return nil
	}
	return i.Values[0].Value
}

// Insights is a decoded insights response.
type Insights []Insight

// Find returns the metric called name.
func (ins Insights) Find(name string) (Insight, bool) {
	for _, i := range ins {
		if i.Name == name {
			return i, true
		}
	}
	return Insight{}, false
}

// Number returns a scalar metric.
func (ins Insights) Number(name string) (float64, bool) {
	i, ok := ins.Find(name)
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(i.Value(), &v); err != nil {
		return 0, false
	}
	return v, true
}

// Breakdown returns a metric whose value is an object of named counts.
func (ins Insights) Breakdown(name string) (map[string]float64, bool) {
	i, ok := ins.Find(name)
	if !ok {
		return nil, false
	}
	var m map[string]float64
	if err := json.Unmarshal(i.Value(), &m); err != nil {
		return nil, false
	}
	return m, true
}

func decodeInsights(res *FetchResult) (Insights, error) {
	if apiErr := ErrorOf(res); apiErr != nil {
		return nil, apiErr
	}
	raw, ok := res.Body["data"]
	if !ok {
		return nil, nil
	}
	var out Insights
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode insights: %w", err)
	}
	return out, nil
}

// PostInsights fetches lifetime insights for a post.
func (c *Client) PostInsights(ctx context.Context, postID, token string, metrics []string) (Insights, error) {
	q := url.Values{}
	q.Set("access_token", token)
	q.Set("period", "lifetime")
	q.Set("date_format", "U")

	path := "/" + url.PathEscape(postID) + "/insights/" + strings.Join(metrics, ",")
	res, err := c.doer.Fetch(ctx, c.endpoint(path, q))
	if err != nil {
		return nil, fmt.Errorf("PostInsights: %w", err)
	}
	ins, err := decodeInsights(res)
	if err != nil {
		return nil, fmt.Errorf("PostInsights: %w", err)
	}
	return ins, nil
}

// VideoInsights fetches every lifetime insight metric of a video.
func (c *Client) VideoInsights(ctx context.Context, videoID, token string) (Insights, error) {
	q := url.Values{}
	q.Set("access_token", token)
	q.Set("period", "lifetime")

	res, err := c.doer.Fetch(ctx, c.endpoint("/"+url.PathEscape(videoID)+"/video_insights", q))
	if err != nil {
		return nil, fmt.Errorf("VideoInsights: %w", err)
	}
	ins, err := decodeInsights(res)
	if err != nil {
		return nil, fmt.Errorf("VideoInsights: %w", err)
	}
	return ins, nil
}

// URLShares returns how often link has been shared across the platform.
// The boolean is false when the API has no share object for the URL.
func (c *Client) URLShares(ctx context.Context, token, link string) (int64, bool, error) {
	q := url.Values{}
	q.Set("id", strings.ReplaceAll(link, "#", ""))
	q.Set("access_token", token)

	res, err := c.doer.Fetch(ctx, c.endpoint("/", q))
	if err != nil {
		return 0, false, fmt.Errorf("URLShares: %w", err)
	}
	if apiErr := ErrorOf(res); apiErr != nil {
		return 0, false, fmt.Errorf("URLShares: %w", apiErr)
	}
	raw, ok := res.Body["share"]
	if !ok {
		return 0, false, nil
	}
	var share struct {
		ShareCount int64 `json:"share_count"`
	}
	if err := json.Unmarshal(raw, &share); err != nil {
		return 0, false, fmt.Errorf("URLShares: decode: %w", err)
	}
	return share.ShareCount, true, nil
}

// PageFollowers holds the audience counters of a page.
type PageFollowers struct {
	ID             string `json:"id"`
	FanCount       int64  `json:"fan_count"`
	FollowersCount int64  `json:"followers_count"`
}

// Count prefers followers_count and falls back to fan_count on API versions
// that predate it.
func (p *PageFollowers) Count() int64 {
	if p.FollowersCount > 0 {
		return p.FollowersCount
	}
	return p.FanCount
}

// Followers fetches the audience counters of a page.
func (c *Client) Followers(ctx context.Context, pageID, token string) (*PageFollowers, error) {
	q := url.Values{}
	q.Set("fields", "fan_count,followers_count")
	q.Set("access_token", token)

	res, err := c.doer.Fetch(ctx, c.endpoint("/"+url.PathEscape(pageID), q))
	if err != nil {
		return nil, fmt.Errorf("Followers: %w", err)
	}
	if apiErr := ErrorOf(res); apiErr != nil {
		return nil, fmt.Errorf("Followers: %w", apiErr)
	}

	var out PageFollowers
	for key, dst := range map[string]any{"id": &out.ID, "fan_count": &out.FanCount, "followers_count": &out.FollowersCount} {
		raw, ok := res.Body[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("Followers: decode %s: %w", key, err)
		}
	}
	return &out, nil
}
