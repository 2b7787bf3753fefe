package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/reachpan/internal/graph"
	"github.com/ppiankov/reachpan/internal/record"
	"github.com/ppiankov/reachpan/internal/source"
)

// Video record fields.
const (
	FieldLiveVideo       = "Live Video"
	FieldCrossposted     = "Crossposted Video"
	Field3sViews         = "3s Views"
	Field10sViews        = "10s Views"
	FieldCompleteViews   = "Complete Views"
	FieldPaidViews       = "Total Paid Views"
	Field10s3sRatio      = "10s/3s Views (%)"
	FieldComplete3sRatio = "Complete/3s Views (%)"
	FieldImpressions     = "Impressions"
	FieldAvgViewTime     = "Avg View Time"
)

const (
	videoStatusExpired    = "expired"
	metricViews           = "total_video_views"
	metric10sViews        = "total_video_10s_views"
	metricCompleteViews   = "total_video_complete_views"
	metricAvgTimeWatched  = "total_video_avg_time_watched"
	metricImpressions     = "total_video_impressions"
	metricImpressionsFan  = "total_video_impressions_fan"
	metricViewsPaid       = "total_video_views_paid"
	metricViewsByDistType = "total_video_views_by_distribution_type"
)

type videoItem struct {
	ID           string       `json:"id"`
	Title        *string      `json:"title"`
	Description  *string      `json:"description"`
	CreatedTime  string       `json:"created_time"`
	PermalinkURL string       `json:"permalink_url"`
	LiveStatus   *string      `json:"live_status"`
	Comments     *summaryEdge `json:"comments"`
	Likes        *summaryEdge `json:"likes"`
	Reactions    *summaryEdge `json:"reactions"`
	Status       struct {
		VideoStatus string `json:"video_status"`
	} `json:"status"`
}

func decodeVideo(item graph.Item) (*videoItem, error) {
	var v videoItem
	if err := json.Unmarshal(item.Raw, &v); err != nil {
		return nil, fmt.Errorf("decode video %s: %w", item.ID, err)
	}
	return &v, nil
}

func (p *Processor) videoBase(task source.Task, v *videoItem) record.Record {
	return record.Record{
		record.FieldPage:      task.SourceID,
		record.FieldVideoID:   v.ID,
		record.FieldPublished: v.CreatedTime,
		FieldLiveVideo:        v.LiveStatus != nil,
		record.FieldHeadline:  normalizeText(v.Title),
		record.FieldCaption:   normalizeText(v.Description),
		FieldNumLikes:         valueOrZero(v.Likes.total()),
		FieldNumReactions:     valueOrZero(v.Reactions.total()),
		FieldNumComments:      valueOrZero(v.Comments.total()),
		record.FieldLink:      v.PermalinkURL,
		record.FieldTimestamp: record.Stamp(p.now()),
	}
}

// Video processes one item of a page's videos feed into the CSV row shape.
// Expired videos are skipped. Live videos and pages without their own
// credential carry no insight metrics.
func (p *Processor) Video(ctx context.Context, task source.Task, item graph.Item) (record.Record, error) {
	v, err := decodeVideo(item)
	if err != nil {
		return nil, err
	}
	if v.Status.VideoStatus == videoStatusExpired {
		return nil, nil
	}

	rec := p.videoBase(task, v)
	for _, f := range []string{
		Field3sViews, Field10sViews, FieldCompleteViews, FieldPaidViews, Field10s3sRatio,
		FieldComplete3sRatio, FieldImpressions, FieldNonLikerRate, FieldAvgViewTime,
	} {
		rec[f] = nil
	}

	var views *int64
	if p.owned(task.SourceID) {
		ins, err := p.API.VideoInsights(ctx, v.ID, task.Credential)
		if err != nil {
			p.Log.Warn().Err(err).Str("video", v.ID).Msg("video insights")
		} else if len(ins) > 0 {
			views = applyVideoInsights(rec, ins)
		}
	}

	rec[FieldCrossposted] = views == nil && v.LiveStatus == nil
	return rec, nil
}

func applyVideoInsights(rec record.Record, ins graph.Insights) *int64 {
	var views *int64
	if n, ok := count(ins, metricViews); ok {
		rec[Field3sViews] = n
		views = &n
	}
	if n, ok := count(ins, metric10sViews); ok {
		rec[Field10sViews] = n
	}
	if n, ok := count(ins, metricCompleteViews); ok {
		rec[FieldCompleteViews] = n
	}
	if n, ok := count(ins, metricViewsPaid); ok {
		rec[FieldPaidViews] = n
	}
	if ms, ok := ins.Number(metricAvgTimeWatched); ok {
		rec[FieldAvgViewTime] = ms / 1000
	}

	impressions, okImp := ins.Number(metricImpressions)
	if okImp {
		rec[FieldImpressions] = int64(impressions)
	}
	if fan, ok := ins.Number(metricImpressionsFan); ok && okImp {
		rec[FieldNonLikerRate] = record.Percent(impressions-fan, impressions)
	}

	if views != nil {
		v3 := float64(*views)
		if v10, ok := ins.Number(metric10sViews); ok {
			rec[Field10s3sRatio] = record.Percent(v10, v3)
		}
		if complete, ok := ins.Number(metricCompleteViews); ok {
			rec[FieldComplete3sRatio] = record.Percent(complete, v3)
		}
	}
	return views
}

// Index-only video fields derived from the raw insight metrics.
const (
	metricViewsCrossposted  = "total_video_views_by_crossposted"
	metricViewsPageOwned    = "total_video_views_by_page_owned"
	metricViewsPageShared   = "total_video_views_by_page_shared"
	metricImpressionsNonFan = "total_video_impressions_non_fan"
	metricNonFanRate        = "total_non_fan_impressions_rate"
	metricTenThreeRatio     = "ten_three_s_ratio"
	metricCompleteRatio     = "complete_three_s_ratio"
)

// VideoAllMetrics processes one video for the index: every lifetime insight
// metric is copied in under its own name with dots stripped from keys,
// followed by the derived fields.
func (p *Processor) VideoAllMetrics(ctx context.Context, task source.Task, item graph.Item) (record.Record, error) {
	v, err := decodeVideo(item)
	if err != nil {
		return nil, err
	}
	rec := p.videoBase(task, v)

	if !p.owned(task.SourceID) {
		return rec, nil
	}

	ins, err := p.API.VideoInsights(ctx, v.ID, task.Credential)
	if err != nil {
		p.Log.Warn().Err(err).Str("video", v.ID).Msg("video insights")
	}
	for _, metric := range ins {
		rec[stripDots(metric.Name)] = decodeValue(metric.Value())
	}

	if len(ins) > 0 {
		if byType, ok := rec[metricViewsByDistType].(map[string]any); ok {
			rec[metricViewsCrossposted] = byType["crossposted"]
			rec[metricViewsPageOwned] = byType["page_owned"]
			rec[metricViewsPageShared] = byType["shared"]
		}

		impressions, okImp := ins.Number(metricImpressions)
		fan, okFan := ins.Number(metricImpressionsFan)
		if okImp && okFan {
			rec[metricImpressionsNonFan] = impressions - fan
			rec[metricNonFanRate] = record.Percent(impressions-fan, impressions)
		}
		if views, ok := ins.Number(metricViews); ok {
			v10, _ := ins.Number(metric10sViews)
			complete, _ := ins.Number(metricCompleteViews)
			rec[metricTenThreeRatio] = record.Percent(v10, views)
			rec[metricCompleteRatio] = record.Percent(complete, views)
		}
	}

	views, hasViews := rec[metricViews]
	hasViews = hasViews && views != nil
	rec[FieldCrossposted] = !hasViews && v.LiveStatus == nil
	if hasViews {
		rec[FieldVideoViews] = views
	}
	return rec, nil
}
