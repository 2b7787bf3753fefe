package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/reachpan/internal/graph"
	"github.com/ppiankov/reachpan/internal/record"
	"github.com/ppiankov/reachpan/internal/score"
	"github.com/ppiankov/reachpan/internal/source"
)

// Post record fields beyond the shared ones in package record.
const (
	FieldNumShares              = "Num Shares"
	FieldNumReactions           = "Num Reactions"
	FieldNumComments            = "Num Comments"
	FieldNumLikes               = "Num Likes"
	FieldNumLoves               = "Num Loves"
	FieldNumWows                = "Num Wows"
	FieldNumHahas               = "Num Hahas"
	FieldNumSads                = "Num Sads"
	FieldNumAngrys              = "Num Angrys"
	FieldPublicShares           = "Lifetime Public Num Shares"
	FieldUniqueImpressions      = "Unique Impressions"
	FieldPaidImpressions        = "Paid Unique Impressions"
	FieldOrganicImpressions     = "Organic Unique Impressions"
	FieldNonLikerRate           = "Impression Rate Non-Likers (%)"
	FieldUniqueLinkClicks       = "Unique Link Clicks"
	FieldCTR                    = "CTR (%)"
	FieldAdjustedCTR            = "Adjusted CTR (%)"
	FieldHideRate               = "Hide Rate (%)"
	FieldHideClicks             = "Hide Clicks"
	FieldHideAllClicks          = "Hide All Clicks"
	FieldVideoViews             = "Video Views"
	FieldEngagementRate         = "Engagement Rate (%)"
	FieldAdjustedEngagementRate = "Adjusted Engagement Rate (%)"
)

// ReactionsLaunch is when typed reactions became available. Older posts
// only carry likes, so their reaction total is reported as likes.
var ReactionsLaunch = time.Date(2016, 2, 24, 0, 0, 0, 0, time.UTC)

type postItem struct {
	ID          string       `json:"id"`
	Message     *string      `json:"message"`
	Name        *string      `json:"name"`
	Link        *string      `json:"link"`
	Type        string       `json:"type"`
	CreatedTime string       `json:"created_time"`
	Comments    *summaryEdge `json:"comments"`
	Reactions   *summaryEdge `json:"reactions"`
	Shares      *struct {
		Count int64 `json:"count"`
	} `json:"shares"`
}

// Post processes one item of a page's posts feed.
func (p *Processor) Post(ctx context.Context, task source.Task, item graph.Item) (record.Record, error) {
	var post postItem
	if err := json.Unmarshal(item.Raw, &post); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", item.ID, err)
	}

	var shares *int64
	if post.Shares != nil {
		shares = &post.Shares.Count
	}
	reactions := post.Reactions.total()
	comments := post.Comments.total()

	rec := record.Record{
		record.FieldPage:      task.SourceID,
		record.FieldPublished: post.CreatedTime,
		record.FieldType:      post.Type,
		record.FieldHeadline:  normalizeText(post.Name),
		record.FieldCaption:   normalizeText(post.Message),
		record.FieldLink:      normalizeText(post.Link),
		record.FieldPostID:    post.ID,
		record.FieldTimestamp: record.Stamp(p.now()),
		FieldNumShares:        optional(shares),
		FieldNumReactions:     optional(reactions),
		FieldNumComments:      optional(comments),
		FieldNumLikes:         nil,
		FieldNumLoves:         nil,
		FieldNumWows:          nil,
		FieldNumHahas:         nil,
		FieldNumSads:          nil,
		FieldNumAngrys:        nil,
		FieldPublicShares:     nil,
	}

	if p.Enrich.PublicShares && post.Link != nil {
		n, ok, err := p.API.URLShares(ctx, task.Credential, *post.Link)
		switch {
		case err != nil:
			p.Log.Warn().Err(err).Str("post", post.ID).Msg("public shares")
		case ok:
			rec[FieldPublicShares] = n
		}
	}

	if p.Enrich.SpecificReactions {
		p.addReactions(ctx, task, item, reactions, rec)
	}

	if !p.owned(task.SourceID) || isCoverPhoto(post) {
		return rec, nil
	}

	for _, f := range []string{
		FieldUniqueImpressions, FieldPaidImpressions, FieldOrganicImpressions, FieldNonLikerRate,
		FieldUniqueLinkClicks, FieldCTR, FieldAdjustedCTR, FieldHideRate, FieldHideClicks,
		FieldHideAllClicks, FieldVideoViews, FieldEngagementRate, FieldAdjustedEngagementRate,
	} {
		rec[f] = nil
	}

	ins, err := p.API.PostInsights(ctx, post.ID, task.Credential, graph.PostInsightMetrics)
	if err != nil {
		p.Log.Warn().Err(err).Str("post", post.ID).Msg("post insights")
		return rec, nil
	}
	if err := applyPostInsights(rec, ins, post.Type, shares, reactions, comments); err != nil {
		p.Log.Warn().Err(err).Str("post", post.ID).Msg("post insights")
	}
	return rec, nil
}

func (p *Processor) addReactions(ctx context.Context, task source.Task, item graph.Item, total *int64, rec record.Record) {
	if item.CreatedTime.Before(ReactionsLaunch) {
		rec[FieldNumLikes] = optional(total)
		for _, f := range []string{FieldNumLoves, FieldNumWows, FieldNumHahas, FieldNumSads, FieldNumAngrys} {
			rec[f] = int64(0)
		}
		return
	}

	r, err := p.API.Reactions(ctx, item.ID, task.Credential)
	if err != nil {
		p.Log.Warn().Err(err).Str("post", item.ID).Msg("reaction breakdown")
		return
	}
	rec[FieldNumLikes] = r.Like
	rec[FieldNumLoves] = r.Love
	rec[FieldNumWows] = r.Wow
	rec[FieldNumHahas] = r.Haha
	rec[FieldNumSads] = r.Sad
	rec[FieldNumAngrys] = r.Angry
}

func isCoverPhoto(post postItem) bool {
	return post.Type == "photo" && post.Name != nil && strings.Contains(*post.Name, "cover photo")
}

// applyPostInsights derives the owned-page metrics. Fields are only written
// once every required metric decoded, so a malformed response leaves them
// all nil.
func applyPostInsights(rec record.Record, ins graph.Insights, postType string, shares, reactions, comments *int64) error {
	impressions, ok := ins.Breakdown("post_impressions_by_paid_non_paid_unique")
	if !ok {
		return errors.New("missing post_impressions_by_paid_non_paid_unique")
	}
	consumptions, ok := ins.Breakdown("post_consumptions_by_type_unique")
	if !ok {
		return errors.New("missing post_consumptions_by_type_unique")
	}
	videoViews, ok := ins.Number("post_video_views")
	if !ok {
		return errors.New("missing post_video_views")
	}
	fanImpressions, ok := ins.Number("post_impressions_fan_unique")
	if !ok {
		return errors.New("missing post_impressions_fan_unique")
	}
	negative, ok := ins.Breakdown("post_negative_feedback_by_type_unique")
	if !ok {
		negative = map[string]float64{}
	}

	total := impressions["total"]
	clicks := consumptions["link clicks"]
	hide := negative["hide_clicks"]
	hideAll := negative["hide_all_clicks"]

	rec[FieldUniqueImpressions] = int64(total)
	rec[FieldPaidImpressions] = int64(impressions["paid"])
	rec[FieldOrganicImpressions] = int64(impressions["unpaid"])
	rec[FieldUniqueLinkClicks] = int64(clicks)
	rec[FieldCTR] = record.Percent(clicks, total)
	if postType == "link" {
		rec[FieldAdjustedCTR] = score.AdjustedPercent(clicks, total)
	}
	rec[FieldVideoViews] = int64(videoViews)
	rec[FieldNonLikerRate] = record.Percent(total-fanImpressions, total)
	rec[FieldHideClicks] = int64(hide)
	rec[FieldHideAllClicks] = int64(hideAll)
	rec[FieldHideRate] = record.Percent(hide+hideAll, total)

	if shares != nil && reactions != nil && comments != nil {
		engagement := float64(*shares + *reactions + *comments)
		denominator := total
		if postType == "video" {
			denominator = videoViews
		}
		rec[FieldEngagementRate] = record.Percent(engagement, denominator)
		rec[FieldAdjustedEngagementRate] = score.AdjustedPercent(engagement, denominator)
	}
	return nil
}
