package tiktok

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
)

// Name задаёт отображаемое имя платформы.
const Name = "TikTok"

var hosts = map[string]struct{}{
	"tiktok.com":     {},
	"www.tiktok.com": {},
	"m.tiktok.com":   {},
	"vm.tiktok.com":  {},
	"vt.tiktok.com":  {},
}

var trackingParams = map[string]struct{}{
	"_r":                {},
	"_t":                {},
	"is_from_webapp":    {},
	"sender_device":     {},
	"is_copy_url":       {},
	"share_app_id":      {},
	"share_item_id":     {},
	"share_link_id":     {},
	"social_share_type": {},
	"source":            {},
	"u_code":            {},
	"timestamp":         {},
	"user_id":           {},
	"sec_user_id":       {},
	"checksum":          {},
	"language":          {},
	"tt_from":           {},
	"web_id":            {},
}

// JSONGetter выполняет GET к апстриму с повторами и декодирует ответ.
type JSONGetter interface {
	GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error
}

// Resolver получает метаданные TikTok через tiklydown API.
type Resolver struct {
	client   JSONGetter
	endpoint string
	log      zerolog.Logger
}

var _ domain.Resolver = (*Resolver)(nil)

// New создаёт резолвер.
func New(client JSONGetter, endpoint string, logger zerolog.Logger) *Resolver {
	return &Resolver{client: client, endpoint: endpoint, log: logger}
}

// Name возвращает имя платформы.
func (r *Resolver) Name() string {
	return Name
}

// Matches проверяет, что ссылка ведёт на TikTok.
func (r *Resolver) Matches(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if _, ok := hosts[strings.ToLower(u.Hostname())]; !ok {
		return false
	}
	return strings.Trim(u.Path, "/") != ""
}

// Normalize убирает трекинговые параметры. При ошибке разбора возвращает строку как есть.
func Normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingParams[lower]; ok {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String()
}

// Fetch получает метаданные ролика или фотокарусели.
func (r *Resolver) Fetch(ctx context.Context, raw string) (domain.MediaResult, error) {
	normalized := Normalize(raw)
	var resp apiResponse
	if err := r.client.GetJSON(ctx, r.endpoint, url.Values{"url": {normalized}}, &resp); err != nil {
		return domain.MediaResult{}, &domain.UpstreamError{Platform: Name, Err: err}
	}
	res, err := resp.toResult()
	if err != nil {
		r.log.Warn().Err(err).Str("url", normalized).Msg("tiktok: непригодный ответ апстрима")
		return domain.MediaResult{}, &domain.UpstreamError{Platform: Name, Err: err}
	}
	return res, nil
}

type apiResponse struct {
	Title  string `json:"title"`
	Author *struct {
		Name     string `json:"name"`
		Nickname string `json:"nickname"`
	} `json:"author"`
	Stats *struct {
		LikeCount    flexInt `json:"likeCount"`
		CommentCount flexInt `json:"commentCount"`
		ShareCount   flexInt `json:"shareCount"`
		PlayCount    flexInt `json:"playCount"`
	} `json:"stats"`
	Video *struct {
		NoWatermark string  `json:"noWatermark"`
		Duration    flexInt `json:"duration"`
	} `json:"video"`
	Images []imageEntry `json:"images"`
}

func (a apiResponse) toResult() (domain.MediaResult, error) {
	res := domain.MediaResult{Platform: Name, Description: strings.TrimSpace(a.Title)}
	if a.Author != nil {
		res.Author = a.Author.Name
		if res.Author == "" {
			res.Author = a.Author.Nickname
		}
	}
	if a.Stats != nil {
		res.Likes = a.Stats.LikeCount.ptr()
		res.Comments = a.Stats.CommentCount.ptr()
		res.Shares = a.Stats.ShareCount.ptr()
		res.Views = a.Stats.PlayCount.ptr()
	}
	if a.Video != nil && a.Video.Duration.set {
		res.Duration = int(a.Video.Duration.value)
	}

	for _, img := range a.Images {
		if img.URL == "" {
			continue
		}
		res.Items = append(res.Items, domain.MediaItem{
			URL:    img.URL,
			Kind:   domain.MediaImage,
			Width:  img.Width,
			Height: img.Height,
		})
	}
	switch {
	case len(res.Items) > 0:
		res.IsMultiItem = true
	case a.Video != nil && a.Video.NoWatermark != "":
		res.DownloadURL = a.Video.NoWatermark
	default:
		return domain.MediaResult{}, domain.ErrInvalidResultShape
	}
	if err := res.Validate(); err != nil {
		return domain.MediaResult{}, err
	}
	return res, nil
}

// imageEntry принимает как объект {url,width,height}, так и строку с URL.
type imageEntry struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (e *imageEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.URL = s
		return nil
	}
	type plain imageEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = imageEntry(p)
	return nil
}

// flexInt принимает число, строку с числом или null.
type flexInt struct {
	value int64
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		return nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		f.value, f.set = v, true
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// Нечисловые значения игнорируются: поле необязательное.
		return nil
	}
	f.value, f.set = int64(v), true
	return nil
}

func (f flexInt) ptr() *int64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}
