package domain

import "fmt"

// MediaKind описывает тип элемента медиа.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

// MaxBatchSize задаёт ограничение Telegram на количество элементов в медиагруппе.
const MaxBatchSize = 10

// MediaItem описывает один элемент многоэлементного результата.
type MediaItem struct {
	URL      string    `json:"url"`
	Kind     MediaKind `json:"kind"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Duration int       `json:"duration,omitempty"`
}

// MediaResult описывает каноничный ответ резолвера платформы.
// Счётчики необязательны: nil означает, что платформа их не вернула.
type MediaResult struct {
	Platform    string
	DownloadURL string
	Author      string
	Likes       *int64
	Comments    *int64
	Shares      *int64
	Views       *int64
	Description string
	Duration    int
	IsMultiItem bool
	Items       []MediaItem
}

// Validate проверяет, что результат либо одиночный, либо многоэлементный.
func (m MediaResult) Validate() error {
	single := m.DownloadURL != ""
	multi := m.IsMultiItem && len(m.Items) > 0
	if single == multi {
		return fmt.Errorf("%w: download url set=%t, items=%d", ErrInvalidResultShape, single, len(m.Items))
	}
	return nil
}

// Images возвращает только элементы-изображения в исходном порядке.
func (m MediaResult) Images() []MediaItem {
	images := make([]MediaItem, 0, len(m.Items))
	for _, item := range m.Items {
		if item.Kind == MediaImage && item.URL != "" {
			images = append(images, item)
		}
	}
	return images
}
