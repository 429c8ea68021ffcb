package httpapi

import (
	"context"

	"github.com/dmitrijs2005/talkboard/internal/server/models"
)

type userOut struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	IsActive bool   `json:"isActive"`
}

type imageWordOut struct {
	ID             int64   `json:"id"`
	Word           string  `json:"word"`
	ImageURL       *string `json:"imageUrl"`
	CategoryID     int64   `json:"categoryId"`
	ConjugatedWord *string `json:"conjugatedWord"`
}

type categoryOut struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	ImageURL  *string        `json:"imageUrl"`
	ProfileID int64          `json:"profileId"`
	Items     []imageWordOut `json:"items"`
}

type profileOut struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	UserID     string        `json:"userId"`
	Categories []categoryOut `json:"categories"`
}

func toUserOut(u *models.User) userOut {
	return userOut{ID: u.ID, Email: u.Email, IsActive: u.IsActive}
}

// imageURL resolves a blob key for the client. A missing key, or one the
// store cannot sign, is rendered as null.
func (h *handler) imageURL(ctx context.Context, key string) *string {
	if key == "" || h.store == nil {
		return nil
	}
	url, err := h.store.URL(ctx, key, h.urlTTL)
	if err != nil {
		h.logger.Warn(ctx, "cannot resolve image url", "key", key, "error", err)
		return nil
	}
	return &url
}

func (h *handler) toImageWordOut(ctx context.Context, w *models.ImageWord) imageWordOut {
	return imageWordOut{
		ID:         w.ID,
		Word:       w.Word,
		ImageURL:   h.imageURL(ctx, w.ImageKey),
		CategoryID: w.CategoryID,
	}
}

func (h *handler) toImageWordsOut(ctx context.Context, ws []*models.ImageWord) []imageWordOut {
	out := make([]imageWordOut, 0, len(ws))
	for _, w := range ws {
		out = append(out, h.toImageWordOut(ctx, w))
	}
	return out
}

func (h *handler) toCategoryOut(ctx context.Context, c *models.Category) categoryOut {
	return categoryOut{
		ID:        c.ID,
		Name:      c.Name,
		ImageURL:  h.imageURL(ctx, c.ImageKey),
		ProfileID: c.ProfileID,
		Items:     h.toImageWordsOut(ctx, c.Items),
	}
}

func (h *handler) toCategoriesOut(ctx context.Context, cs []*models.Category) []categoryOut {
	out := make([]categoryOut, 0, len(cs))
	for _, c := range cs {
		out = append(out, h.toCategoryOut(ctx, c))
	}
	return out
}

func (h *handler) toProfileOut(ctx context.Context, p *models.Profile) profileOut {
	return profileOut{
		ID:         p.ID,
		Name:       p.Name,
		UserID:     p.UserID,
		Categories: h.toCategoriesOut(ctx, p.Categories),
	}
}
