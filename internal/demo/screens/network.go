package screens

import (
	"context"
	"slices"

	"github.com/kbukum/flowkit/internal/demo/api"
	"github.com/kbukum/flowkit/internal/demo/store"
	"github.com/kbukum/flowkit/stream"
)

var singleNetworkCall = &screen{
	name:        "single-network-call",
	description: "one user page fetched on the blocking-io pool",
	run:         runSingleNetworkCall,
}

var seriesNetworkCalls = &screen{
	name:        "series-network-calls",
	description: "two user pages fetched one after the other and concatenated",
	run:         runSeriesNetworkCalls,
}

var roomDB = &screen{
	name:        "room-db",
	description: "users from the local store, fetched and cached on first run",
	run:         runRoomDB,
}

func runSingleNetworkCall(ctx context.Context, s *session) error {
	ui, err := newUIState(ctx, s, slices.Equal[[]api.ApiUser])
	if err != nil {
		return err
	}
	src := stream.Catch(stream.FlowOn(s.env.API.GetUsers(), s.env.Dispatchers.BlockingIO), ui.catch)
	if err := render(ctx, s, src, ui.success); err != nil {
		return err
	}
	return ui.flush(ctx)
}

func runSeriesNetworkCalls(ctx context.Context, s *session) error {
	ui, err := newUIState(ctx, s, slices.Equal[[]api.ApiUser])
	if err != nil {
		return err
	}
	client := s.env.API
	pages := stream.FlatMapConcat(client.GetUsers(), func(first []api.ApiUser) *stream.Source[[]api.ApiUser] {
		return stream.Map(client.GetMoreUsers(), func(_ context.Context, more []api.ApiUser) ([]api.ApiUser, error) {
			return append(slices.Clone(first), more...), nil
		})
	})
	src := stream.Catch(stream.FlowOn(pages, s.env.Dispatchers.BlockingIO), ui.catch)
	err = render(ctx, s, src, func(ctx context.Context, users []api.ApiUser) error {
		return ui.success(ctx, users)
	})
	if err != nil {
		return err
	}
	return ui.flush(ctx)
}

func runRoomDB(ctx context.Context, s *session) error {
	ui, err := newUIState(ctx, s, slices.Equal[[]store.User])
	if err != nil {
		return err
	}
	db := s.env.Store
	users := stream.FlatMapConcat(db.Users(), func(cached []store.User) *stream.Source[[]store.User] {
		if len(cached) > 0 {
			return stream.Tap(stream.Of(cached), func(ctx context.Context, _ []store.User) error {
				s.note(ctx, "source", "loaded from cache")
				return nil
			})
		}
		fetched := stream.Map(s.env.API.GetUsers(), func(_ context.Context, in []api.ApiUser) ([]store.User, error) {
			return toStoreUsers(in), nil
		})
		return stream.FlatMapConcat(fetched, func(fresh []store.User) *stream.Source[[]store.User] {
			return stream.Map(db.InsertAll(fresh), func(ctx context.Context, n int) ([]store.User, error) {
				s.note(ctx, "source", "fetched from api, cached %d users", n)
				return fresh, nil
			})
		})
	})
	src := stream.Catch(stream.FlowOn(users, s.env.Dispatchers.BlockingIO), ui.catch)
	err = render(ctx, s, src, func(ctx context.Context, list []store.User) error {
		return ui.success(ctx, list)
	})
	if err != nil {
		return err
	}
	return ui.flush(ctx)
}

func toStoreUsers(in []api.ApiUser) []store.User {
	out := make([]store.User, 0, len(in))
	for _, u := range in {
		out = append(out, store.User{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar})
	}
	return out
}
