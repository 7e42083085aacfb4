package application

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

// ToSummary normalizes a list-query record into a PostSummary.
func ToSummary(raw domain.RawRecord) (domain.PostSummary, error) {
	if err := requireIdentity(raw); err != nil {
		return domain.PostSummary{}, err
	}

	publishedAt, err := parseTimestamp(raw.UID, "first_publication_date", raw.FirstPublicationAt)
	if err != nil {
		return domain.PostSummary{}, err
	}

	return domain.PostSummary{
		UID:         raw.UID,
		PublishedAt: publishedAt,
		Title:       strings.TrimSpace(raw.Data.Title),
		Subtitle:    strings.TrimSpace(raw.Data.Subtitle),
		Author:      strings.TrimSpace(raw.Data.Author),
	}, nil
}

// ToSummaries normalizes a whole page. One malformed record fails the page.
func ToSummaries(raws []domain.RawRecord) ([]domain.PostSummary, error) {
	summaries := make([]domain.PostSummary, 0, len(raws))
	for _, raw := range raws {
		s, err := ToSummary(raw)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// ToPost normalizes a full record into a Post.
func ToPost(raw domain.RawRecord) (*domain.Post, error) {
	if err := requireIdentity(raw); err != nil {
		return nil, err
	}

	publishedAt, err := parseTimestamp(raw.UID, "first_publication_date", raw.FirstPublicationAt)
	if err != nil {
		return nil, err
	}

	editedAt := publishedAt
	if raw.LastPublicationAt != "" {
		editedAt, err = parseTimestamp(raw.UID, "last_publication_date", raw.LastPublicationAt)
		if err != nil {
			return nil, err
		}
		// A store can report a last publication slightly before the first after clock skew.
		if editedAt.Before(publishedAt) {
			editedAt = publishedAt
		}
	}

	sections := make([]domain.ContentSection, 0, len(raw.Data.Content))
	for i, rs := range raw.Data.Content {
		body, err := decodeBlocks(rs.Body)
		if err != nil {
			return nil, &domain.MalformedRecordError{
				UID:    raw.UID,
				Field:  fmt.Sprintf("data.content[%d].body", i),
				Reason: err.Error(),
			}
		}
		sections = append(sections, domain.ContentSection{
			Heading: rs.Heading,
			Body:    body,
		})
	}

	banner := ""
	if raw.Data.Banner != nil {
		banner = raw.Data.Banner.URL
	}

	return &domain.Post{
		ID:          raw.ID,
		UID:         raw.UID,
		PublishedAt: publishedAt,
		EditedAt:    editedAt,
		Title:       strings.TrimSpace(raw.Data.Title),
		Subtitle:    strings.TrimSpace(raw.Data.Subtitle),
		BannerURL:   banner,
		Author:      strings.TrimSpace(raw.Data.Author),
		Sections:    sections,
	}, nil
}

func requireIdentity(raw domain.RawRecord) error {
	if strings.TrimSpace(raw.UID) == "" {
		return &domain.MalformedRecordError{UID: raw.ID, Field: "uid"}
	}
	if strings.TrimSpace(raw.Data.Title) == "" {
		return &domain.MalformedRecordError{UID: raw.UID, Field: "data.title"}
	}
	return nil
}

func parseTimestamp(uid, field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &domain.MalformedRecordError{UID: uid, Field: field}
	}

	t, err := domain.ParseTimestamp(value)
	if err != nil {
		return time.Time{}, &domain.MalformedRecordError{UID: uid, Field: field, Reason: err.Error()}
	}
	return t, nil
}

func decodeBlocks(body json.RawMessage) ([]domain.RichBlock, error) {
	if len(body) == 0 || string(body) == "null" {
		return []domain.RichBlock{}, nil
	}

	var blocks []domain.RichBlock
	if err := json.Unmarshal(body, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}
