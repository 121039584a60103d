// Package directory maintains a full-text index over participant
// profiles so one party can find the other by name or email before a
// conversation exists.
package directory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
	"github.com/samber/lo"

	"chat-sync/domain"
	"chat-sync/repositories"
)

type IDirectory interface {
	IndexParticipant(p domain.Participant) error
	Search(ctx context.Context, selfID, term string) ([]domain.Participant, error)
	ListOthers(selfID string) ([]domain.Participant, error)
}

type Directory struct {
	writer   *bluge.Writer
	profiles repositories.IProfileRepository
	log      *slog.Logger
	limit    int
}

func NewDirectory(writer *bluge.Writer, profiles repositories.IProfileRepository, log *slog.Logger, limit int) *Directory {
	return &Directory{
		writer:   writer,
		profiles: profiles,
		log:      log,
		limit:    limit,
	}
}

// Reindex rebuilds the index from the profile store. Called once at
// boot because the bluge segment files and the badger store can drift
// after an unclean shutdown.
func (d *Directory) Reindex() error {
	participants, err := d.profiles.All()
	if err != nil {
		return err
	}
	for _, participant := range participants {
		if err := d.IndexParticipant(participant); err != nil {
			return err
		}
	}
	d.log.Info("directory reindexed", "participants", len(participants))
	return nil
}

// IndexParticipant upserts the searchable fields for one profile.
func (d *Directory) IndexParticipant(p domain.Participant) error {
	doc := bluge.NewDocument(p.ID).
		AddField(bluge.NewTextField("name", p.Name).StoreValue()).
		AddField(bluge.NewTextField("email", p.Email).StoreValue())
	return d.writer.Update(doc.ID(), doc)
}

// Search matches the term against name and email, excluding the caller
// from the results. Resolution goes back through the profile store so
// results always carry the current display snapshot.
func (d *Directory) Search(ctx context.Context, selfID, term string) ([]domain.Participant, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	reader, err := d.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	query := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(term).SetField("name")).
		AddShould(bluge.NewMatchQuery(term).SetField("email")).
		AddShould(bluge.NewPrefixQuery(strings.ToLower(term)).SetField("name"))
	request := bluge.NewTopNSearch(d.limit, query)

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var ids []string
	match, err := iterator.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}

	var results []domain.Participant
	for _, id := range ids {
		if id == selfID {
			continue
		}
		participant, err := d.profiles.Get(id)
		if err != nil {
			d.log.Warn("indexed profile missing from store", "id", id)
			continue
		}
		results = append(results, participant)
	}
	return results, nil
}

// ListOthers returns every registered participant except the caller,
// for the browse view when no search term is set.
func (d *Directory) ListOthers(selfID string) ([]domain.Participant, error) {
	participants, err := d.profiles.All()
	if err != nil {
		return nil, err
	}
	return lo.Filter(participants, func(p domain.Participant, _ int) bool {
		return p.ID != selfID
	}), nil
}
