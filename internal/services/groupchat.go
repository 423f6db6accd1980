package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/chatlock"
	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/repos"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

// Broadcaster fans persisted group turns out to live listeners.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload interface{})
}

// GroupTurn is what live listeners receive for each stored group entry.
type GroupTurn struct {
	Group   int    `json:"group"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GroupChatService interface {
	Resolve(ctx context.Context, ref string) (*types.Group, error)
	Boot(ctx context.Context, ref string) ([]llm.Message, error)
	Chat(ctx context.Context, ref, text string) (string, error)
}

type groupChatService struct {
	db            *gorm.DB
	log           *logger.Logger
	gateway       llm.Gateway
	locks         *chatlock.Keyed
	groupRepo     repos.GroupRepo
	groupChatRepo repos.GroupChatRepo
	broadcaster   Broadcaster
}

// NewGroupChatService builds the group dialogue engine. broadcaster may be nil.
func NewGroupChatService(
	db *gorm.DB,
	log *logger.Logger,
	gateway llm.Gateway,
	locks *chatlock.Keyed,
	groupRepo repos.GroupRepo,
	groupChatRepo repos.GroupChatRepo,
	broadcaster Broadcaster,
) GroupChatService {
	return &groupChatService{
		db:            db,
		log:           log.With("service", "GroupChatService"),
		gateway:       gateway,
		locks:         locks,
		groupRepo:     groupRepo,
		groupChatRepo: groupChatRepo,
		broadcaster:   broadcaster,
	}
}

// GroupChannel is the live feed channel of a group.
func GroupChannel(number int) string {
	return fmt.Sprintf("group:%d", number)
}

// Resolve finds a group by number ("2" or "group2") or, failing that, by name.
func (gc *groupChatService) Resolve(ctx context.Context, ref string) (*types.Group, error) {
	return gc.resolve(ctx, nil, ref)
}

func (gc *groupChatService) resolve(ctx context.Context, tx *gorm.DB, ref string) (*types.Group, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrGroupNotFound
	}
	var (
		group *types.Group
		err   error
	)
	if number, ok := parseGroupNumber(ref); ok {
		group, err = gc.groupRepo.GetByNumber(ctx, tx, number)
	} else {
		group, err = gc.groupRepo.GetByName(ctx, tx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group %q: %w", ref, err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

func parseGroupNumber(ref string) (int, bool) {
	digits := ref
	if len(ref) > len("group") && strings.EqualFold(ref[:len("group")], "group") {
		digits = ref[len("group"):]
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Boot returns the group's transcript, creating the opening message when the
// transcript is empty. Booting an existing transcript never appends.
func (gc *groupChatService) Boot(ctx context.Context, ref string) ([]llm.Message, error) {
	group, err := gc.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	unlock := gc.locks.Lock(chatlock.GroupKey(group.ID.String()))
	defer unlock()

	var (
		history []*types.GroupChat
		opening *types.GroupChat
	)
	err = gc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-resolve inside the transaction so a regrouping in between is seen.
		current, err := gc.resolve(ctx, tx, ref)
		if err != nil {
			return err
		}
		group = current
		history, err = gc.groupChatRepo.ListByGroup(ctx, tx, group.ID)
		if err != nil {
			return fmt.Errorf("failed to load group transcript: %w", err)
		}
		if len(history) > 0 {
			return nil
		}
		opening = &types.GroupChat{GroupID: group.ID, Role: types.RoleAssistant, Content: groupOpening(group.Rationale)}
		if err := gc.groupChatRepo.Append(ctx, tx, opening); err != nil {
			return fmt.Errorf("failed to store opening message: %w", err)
		}
		history = []*types.GroupChat{opening}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opening != nil {
		gc.log.Info("Group booted", "group", group.Number)
		gc.publish(ctx, group, opening)
	}
	return groupMessages(history), nil
}

// Chat appends the user's turn, replays the whole transcript under the chair
// persona and stores the reply.
func (gc *groupChatService) Chat(ctx context.Context, ref, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	group, err := gc.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	unlock := gc.locks.Lock(chatlock.GroupKey(group.ID.String()))
	defer unlock()

	//1) Persist the user turn
	userTurn := &types.GroupChat{GroupID: group.ID, Role: types.RoleUser, Content: text}
	if err := gc.appendIfCurrent(ctx, userTurn); err != nil {
		return "", err
	}
	gc.publish(ctx, group, userTurn)

	//2) Replay transcript
	history, err := gc.groupChatRepo.ListByGroup(ctx, nil, group.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load group transcript: %w", err)
	}
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: types.RoleSystem, Content: groupSystemPrompt(group.Rationale)})
	for _, h := range history {
		if h.Role == types.RoleSystem {
			continue
		}
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}

	reply, err := gc.gateway.Complete(ctx, messages, groupChatOptions)
	if err != nil {
		gc.log.Warn("Group completion failed", "group", group.Number, "error", err)
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	//3) Persist the reply
	assistantTurn := &types.GroupChat{GroupID: group.ID, Role: types.RoleAssistant, Content: reply}
	if err := gc.appendIfCurrent(ctx, assistantTurn); err != nil {
		return "", err
	}
	gc.publish(ctx, group, assistantTurn)
	return reply, nil
}

// appendIfCurrent stores chat only while its group still exists, so a turn
// racing a regrouping cannot leave rows behind for a deleted group.
func (gc *groupChatService) appendIfCurrent(ctx context.Context, chat *types.GroupChat) error {
	return gc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := gc.groupRepo.Exists(ctx, tx, chat.GroupID)
		if err != nil {
			return fmt.Errorf("failed to check group: %w", err)
		}
		if !exists {
			return ErrGroupNotFound
		}
		if err := gc.groupChatRepo.Append(ctx, tx, chat); err != nil {
			return fmt.Errorf("failed to store group turn: %w", err)
		}
		return nil
	})
}

func (gc *groupChatService) publish(ctx context.Context, group *types.Group, chat *types.GroupChat) {
	if gc.broadcaster == nil {
		return
	}
	gc.broadcaster.Publish(ctx, GroupChannel(group.Number), GroupTurn{
		Group:   group.Number,
		Role:    chat.Role,
		Content: chat.Content,
	})
}

func groupMessages(history []*types.GroupChat) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, h := range history {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}
	return messages
}
