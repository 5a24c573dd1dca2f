package hooks

import (
	"context"
	"errors"
	"evcentral/entity"
	"evcentral/internal"
	"evcentral/types"
	"fmt"
)

// UserTagHook authorizes id tags registered in the store.
type UserTagHook struct {
	name          string
	database      internal.Database
	acceptUnknown bool
}

func NewUserTagHook(name string, database internal.Database, acceptUnknown bool) *UserTagHook {
	return &UserTagHook{name: name, database: database, acceptUnknown: acceptUnknown}
}

func (h *UserTagHook) Name() string {
	return h.name
}

func (h *UserTagHook) Authorize(_ context.Context, _ string, idTag string) (*AuthorizationResult, error) {
	if h.database == nil {
		return nil, fmt.Errorf("user tags: no database")
	}
	_, id := entity.SplitIdTag(idTag)
	if id == "" {
		return &AuthorizationResult{Status: string(types.AuthorizationStatusInvalid)}, nil
	}
	tag, err := h.database.GetUserTag(id)
	if errors.Is(err, internal.ErrNotFound) {
		if h.acceptUnknown {
			return &AuthorizationResult{Status: string(types.AuthorizationStatusAccepted)}, nil
		}
		return &AuthorizationResult{Status: string(types.AuthorizationStatusInvalid)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user tag %s: %w", id, err)
	}
	if !tag.IsEnabled {
		return &AuthorizationResult{Status: string(types.AuthorizationStatusBlocked)}, nil
	}
	return &AuthorizationResult{Status: string(types.AuthorizationStatusAccepted), ExpiryDate: tag.ExpiryDate}, nil
}
