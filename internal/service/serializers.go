package service

import (
	"time"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/permission"
)

type UserPublic struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	IsBot    bool   `json:"is_bot"`
	IsStaff  bool   `json:"is_staff"`
}

func SerializeUser(u *model.User) *UserPublic {
	if u == nil {
		return nil
	}
	return &UserPublic{ID: u.ID, Username: u.Username, IsBot: u.IsBot, IsStaff: u.IsStaff}
}

type UserPrivate struct {
	UserPublic
	Email       string    `json:"email"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

func SerializeMe(u *model.User) UserPrivate {
	return UserPrivate{
		UserPublic:  *SerializeUser(u),
		Email:       u.Email,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt,
	}
}

// SerializeProject renders a project in the shape of its type.
// userPermission is only used by tournament-like types.
func SerializeProject(p *model.Project, userPermission *permission.ObjectPermission, now time.Time) map[string]any {
	data := map[string]any{
		"type": p.Type,
		"id":   p.ID,
		"name": p.Name,
		"slug": p.Slug,
	}
	switch p.Type {
	case model.ProjectTag:
	case model.ProjectCategory:
		data["description"] = p.Description
	case model.ProjectTopic:
		data["emoji"] = p.Emoji
		data["section"] = p.Section
	case model.ProjectTournament, model.ProjectQuestionSeries:
		addTournamentFields(data, p, userPermission, now)
	}
	return data
}

// SerializeTournament is the full tournament form used on the project detail page.
func SerializeTournament(p *model.Project, userPermission *permission.ObjectPermission, now time.Time) map[string]any {
	data := map[string]any{
		"type":         p.Type,
		"id":           p.ID,
		"name":         p.Name,
		"slug":         p.Slug,
		"subtitle":     p.Subtitle,
		"description":  p.Description,
		"header_image": p.HeaderImage,
		"header_logo":  p.HeaderLogo,
	}
	addTournamentFields(data, p, userPermission, now)
	return data
}

func addTournamentFields(data map[string]any, p *model.Project, userPermission *permission.ObjectPermission, now time.Time) {
	data["prize_pool"] = p.PrizePool
	data["start_date"] = p.StartDate
	data["close_date"] = p.CloseDate
	data["meta_description"] = p.MetaDescription
	data["is_ongoing"] = p.IsOngoing(now)
	data["user_permission"] = userPermission
	data["created_at"] = p.CreatedAt
	data["edited_at"] = p.UpdatedAt
}

type MemberData struct {
	User       *UserPublic                 `json:"user"`
	Permission permission.ObjectPermission `json:"permission"`
}

type QuestionData struct {
	ID                 uint64             `json:"id"`
	Type               model.QuestionType `json:"type"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Options            []string           `json:"options,omitempty"`
	RangeMin           *float64           `json:"range_min,omitempty"`
	RangeMax           *float64           `json:"range_max,omitempty"`
	OpenLowerBound     bool               `json:"open_lower_bound"`
	OpenUpperBound     bool               `json:"open_upper_bound"`
	OpenTime           *time.Time         `json:"open_time"`
	ScheduledCloseTime *time.Time         `json:"scheduled_close_time"`
	ActualCloseTime    *time.Time         `json:"actual_close_time"`
	Resolution         *string            `json:"resolution"`
	ActualResolveTime  *time.Time         `json:"actual_resolve_time"`
}

func SerializeQuestion(q *model.Question) *QuestionData {
	if q == nil {
		return nil
	}
	return &QuestionData{
		ID:                 q.ID,
		Type:               q.Type,
		Title:              q.Title,
		Description:        q.Description,
		Options:            q.Options,
		RangeMin:           q.RangeMin,
		RangeMax:           q.RangeMax,
		OpenLowerBound:     q.OpenLowerBound,
		OpenUpperBound:     q.OpenUpperBound,
		OpenTime:           q.OpenTime,
		ScheduledCloseTime: q.ScheduledCloseTime,
		ActualCloseTime:    q.ActualCloseTime,
		Resolution:         q.Resolution,
		ActualResolveTime:  q.ActualResolveTime,
	}
}

type PostData struct {
	ID             uint64                       `json:"id"`
	Title          string                       `json:"title"`
	AuthorID       uint64                       `json:"author_id"`
	CurationStatus model.CurationStatus         `json:"curation_status"`
	PublishedAt    *time.Time                   `json:"published_at"`
	CreatedAt      time.Time                    `json:"created_at"`
	EditedAt       time.Time                    `json:"edited_at"`
	Question       *QuestionData                `json:"question,omitempty"`
	Projects       map[string][]map[string]any  `json:"projects,omitempty"`
	UserPermission *permission.ObjectPermission `json:"user_permission"`
}

type ForecastData struct {
	ID                        uint64     `json:"id"`
	QuestionID                uint64     `json:"question_id"`
	StartTime                 time.Time  `json:"start_time"`
	EndTime                   *time.Time `json:"end_time"`
	ProbabilityYes            *float64   `json:"probability_yes"`
	ProbabilityYesPerCategory []float64  `json:"probability_yes_per_category"`
	ContinuousCDF             []float64  `json:"continuous_cdf"`
}

func SerializeForecast(f *model.Forecast) ForecastData {
	return ForecastData{
		ID:                        f.ID,
		QuestionID:                f.QuestionID,
		StartTime:                 f.StartTime,
		EndTime:                   f.EndTime,
		ProbabilityYes:            f.ProbabilityYes,
		ProbabilityYesPerCategory: f.ProbabilityYesPerCategory,
		ContinuousCDF:             f.ContinuousCDF,
	}
}

type CommentData struct {
	ID                 uint64      `json:"id"`
	Author             *UserPublic `json:"author"`
	ParentID           *uint64     `json:"parent_id"`
	OnPostID           *uint64     `json:"on_post"`
	OnProjectID        *uint64     `json:"on_project"`
	Text               string      `json:"text"`
	IsSoftDeleted      bool        `json:"is_soft_deleted"`
	IsPrivate          bool        `json:"is_private"`
	IncludedForecastID *uint64     `json:"included_forecast_id"`
	CreatedAt          time.Time   `json:"created_at"`
	EditedAt           time.Time   `json:"edited_at"`
}

// SerializeComment hides the text of soft deleted comments.
func SerializeComment(c *model.Comment) CommentData {
	text := c.Text
	if c.IsSoftDeleted {
		text = ""
	}
	return CommentData{
		ID:                 c.ID,
		Author:             SerializeUser(c.Author),
		ParentID:           c.ParentID,
		OnPostID:           c.OnPostID,
		OnProjectID:        c.OnProjectID,
		Text:               text,
		IsSoftDeleted:      c.IsSoftDeleted,
		IsPrivate:          c.IsPrivate,
		IncludedForecastID: c.IncludedForecastID,
		CreatedAt:          c.CreatedAt,
		EditedAt:           c.UpdatedAt,
	}
}

type LeaderboardData struct {
	ID           uint64                `json:"id"`
	ProjectID    uint64                `json:"project_id"`
	Name         string                `json:"name"`
	ScoreType    model.LeaderboardType `json:"score_type"`
	StartTime    *time.Time            `json:"start_time"`
	EndTime      *time.Time            `json:"end_time"`
	FinalizeTime *time.Time            `json:"finalize_time"`
	Finalized    bool                  `json:"finalized"`
}

func SerializeLeaderboard(lb *model.Leaderboard) LeaderboardData {
	return LeaderboardData{
		ID:           lb.ID,
		ProjectID:    lb.ProjectID,
		Name:         lb.Name,
		ScoreType:    lb.ScoreType,
		StartTime:    lb.StartTime,
		EndTime:      lb.EndTime,
		FinalizeTime: lb.FinalizeTime,
		Finalized:    lb.Finalized,
	}
}

type EntryData struct {
	User              *UserPublic  `json:"user"`
	Score             float64      `json:"score"`
	Coverage          float64      `json:"coverage"`
	ContributionCount int          `json:"contribution_count"`
	Rank              int          `json:"rank"`
	Excluded          bool         `json:"excluded"`
	Medal             *model.Medal `json:"medal"`
	CalculatedOn      time.Time    `json:"calculated_on"`
	Take              float64      `json:"take"`
	PercentPrize      float64      `json:"percent_prize"`
	Prize             float64      `json:"prize"`
}

func SerializeEntry(e *model.LeaderboardEntry) EntryData {
	return EntryData{
		User:              SerializeUser(e.User),
		Score:             e.Score,
		Coverage:          e.Coverage,
		ContributionCount: e.ContributionCount,
		Rank:              e.Rank,
		Excluded:          e.Excluded,
		Medal:             e.Medal,
		CalculatedOn:      e.CalculatedOn,
		Take:              e.Take,
		PercentPrize:      e.PercentPrize,
		Prize:             e.Prize,
	}
}

type NotificationData struct {
	ID        uint64         `json:"id"`
	Type      string         `json:"type"`
	Params    map[string]any `json:"params"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `json:"created_at"`
}

func SerializeNotification(n *model.Notification) NotificationData {
	return NotificationData{
		ID:        n.ID,
		Type:      n.Type,
		Params:    n.Params,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

type AggregateData struct {
	Method          model.AggregationMethod `json:"method"`
	StartTime       time.Time               `json:"start_time"`
	EndTime         *time.Time              `json:"end_time"`
	ForecastValues  []float64               `json:"forecast_values"`
	ForecasterCount int                     `json:"forecaster_count"`
}

func SerializeAggregate(a *model.AggregateForecast) AggregateData {
	return AggregateData{
		Method:          a.Method,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		ForecastValues:  a.ForecastValues,
		ForecasterCount: a.ForecasterCount,
	}
}
