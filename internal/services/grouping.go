package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/repos"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

const groupSize = 3

// GroupView is the facilitator and participant facing shape of a group.
type GroupView struct {
	Number           int      `json:"number"`
	Name             string   `json:"name"`
	Members          []string `json:"members"`
	Rationale        string   `json:"rationale"`
	RationaleBullets []string `json:"rationale_bullets"`
	URL              string   `json:"url"`
}

// GroupNotifier is told about every grouping run that produced groups.
type GroupNotifier interface {
	NotifyGroupsFormed(ctx context.Context, sessionID string, groups []GroupView) error
}

type GroupingService interface {
	FormGroups(ctx context.Context, sessionID string) ([]GroupView, error)
	ListGroups(ctx context.Context) ([]GroupView, error)
}

type groupingService struct {
	db              *gorm.DB
	log             *logger.Logger
	gateway         llm.Gateway
	participantRepo repos.ParticipantRepo
	profileRepo     repos.ProfileRepo
	groupRepo       repos.GroupRepo
	notifier        GroupNotifier
}

// NewGroupingService builds the grouping engine. notifier may be nil.
func NewGroupingService(
	db *gorm.DB,
	log *logger.Logger,
	gateway llm.Gateway,
	participantRepo repos.ParticipantRepo,
	profileRepo repos.ProfileRepo,
	groupRepo repos.GroupRepo,
	notifier GroupNotifier,
) GroupingService {
	return &groupingService{
		db:              db,
		log:             log.With("service", "GroupingService"),
		gateway:         gateway,
		participantRepo: participantRepo,
		profileRepo:     profileRepo,
		groupRepo:       groupRepo,
		notifier:        notifier,
	}
}

type candidate struct {
	participant *types.Participant
	summary     string
}

type plannedGroup struct {
	name      string
	rationale string
	members   []*types.Participant
}

type groupingReply struct {
	Groups []struct {
		Name         string   `json:"name"`
		Participants []string `json:"participants"`
		Rationale    string   `json:"rationale"`
	} `json:"groups"`
}

// FormGroups replaces the current grouping epoch with a new one built from
// the eligible participants of sessionID. With fewer than three eligible
// participants nothing is stored and an empty list is returned.
func (gs *groupingService) FormGroups(ctx context.Context, sessionID string) ([]GroupView, error) {
	gs.log.Info("Starting FormGroups now...", "sessionID", sessionID)

	//1) Collect eligible participants
	candidates, err := gs.loadCandidates(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(candidates) < groupSize {
		gs.log.Info("Not enough participants for grouping", "eligible", len(candidates))
		return []GroupView{}, nil
	}

	//2) Ask the model, fall back to plain chunking
	plan, err := gs.planWithModel(ctx, candidates)
	if err != nil {
		gs.log.Warn("Model grouping failed, using fallback", "error", err)
		plan = fallbackPlan(candidates)
	}

	//3) Replace the epoch atomically
	if err := gs.replaceAll(ctx, plan); err != nil {
		gs.log.Error("Failed to persist groups", "error", err)
		return nil, fmt.Errorf("failed to persist groups: %w", err)
	}

	views := make([]GroupView, 0, len(plan))
	for i, g := range plan {
		names := make([]string, 0, len(g.members))
		for _, m := range g.members {
			names = append(names, m.Name)
		}
		views = append(views, newGroupView(i+1, g.name, g.rationale, names))
	}
	gs.log.Info("FormGroups Successful :)", "groups", len(views))

	//4) Best-effort facilitator notice
	if gs.notifier != nil && len(views) > 0 {
		if err := gs.notifier.NotifyGroupsFormed(ctx, sessionID, views); err != nil {
			gs.log.Warn("Group notification failed", "error", err)
		}
	}
	return views, nil
}

func (gs *groupingService) ListGroups(ctx context.Context) ([]GroupView, error) {
	groups, err := gs.groupRepo.ListWithMembers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	views := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, newGroupView(g.Number, g.Name, g.Rationale, memberNames(g)))
	}
	return views, nil
}

func (gs *groupingService) loadCandidates(ctx context.Context, sessionID string) ([]candidate, error) {
	participants, err := gs.participantRepo.ListEligible(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible participants: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	profiles, err := gs.profileRepo.GetByParticipantIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	summaries := make(map[uuid.UUID]string, len(profiles))
	for _, pr := range profiles {
		summaries[pr.ParticipantID] = pr.NeedsSummary
	}

	candidates := make([]candidate, 0, len(participants))
	for _, p := range participants {
		summary := strings.TrimSpace(summaries[p.ID])
		if summary == "" {
			summary = "Creative professional working in " + p.CreativeRole
		}
		candidates = append(candidates, candidate{participant: p, summary: summary})
	}
	return candidates, nil
}

func (gs *groupingService) planWithModel(ctx context.Context, candidates []candidate) ([]plannedGroup, error) {
	blocks := make([]string, 0, len(candidates))
	for _, c := range candidates {
		blocks = append(blocks, fmt.Sprintf("**%s**\nToken: %s\nRole: %s\nNeeds Summary: %s",
			c.participant.Name, c.participant.Token, c.participant.CreativeRole, c.summary))
	}
	prompt := fmt.Sprintf("Form groups from these %d participants:\n\n%s", len(candidates), strings.Join(blocks, "\n\n"))

	reply, err := gs.gateway.Complete(ctx, []llm.Message{
		{Role: types.RoleSystem, Content: groupingPersona},
		{Role: types.RoleUser, Content: prompt},
	}, groupingOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	gs.log.Debug("Grouping reply received", "reply", reply)
	return parseGroupingReply(reply, candidates)
}

// parseGroupingReply maps the model's groups onto candidates. References are
// matched by token first and by unique display name second; nobody is placed
// twice and groups left without members are dropped.
func parseGroupingReply(reply string, candidates []candidate) ([]plannedGroup, error) {
	raw, ok := llm.ExtractJSONObject(reply)
	if !ok {
		return nil, fmt.Errorf("no JSON object in grouping reply")
	}
	var parsed groupingReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("decode grouping reply: %w", err)
	}

	byToken := make(map[string]*types.Participant, len(candidates))
	byName := make(map[string][]*types.Participant, len(candidates))
	for _, c := range candidates {
		byToken[c.participant.Token] = c.participant
		key := strings.ToLower(strings.TrimSpace(c.participant.Name))
		byName[key] = append(byName[key], c.participant)
	}
	placed := make(map[uuid.UUID]bool, len(candidates))

	var plan []plannedGroup
	for _, g := range parsed.Groups {
		var members []*types.Participant
		for _, ref := range g.Participants {
			ref = strings.TrimSpace(ref)
			p, ok := byToken[ref]
			if !ok {
				if matches := byName[strings.ToLower(ref)]; len(matches) == 1 {
					p = matches[0]
				}
			}
			if p == nil || placed[p.ID] {
				continue
			}
			placed[p.ID] = true
			members = append(members, p)
		}
		if len(members) == 0 {
			continue
		}
		name := strings.TrimSpace(g.Name)
		if name == "" {
			name = fmt.Sprintf("Group %d", len(plan)+1)
		}
		plan = append(plan, plannedGroup{name: name, rationale: strings.TrimSpace(g.Rationale), members: members})
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("grouping reply contained no usable groups")
	}
	return plan, nil
}

// fallbackPlan chunks candidates in order into complete triples. A remainder
// of one or two is left ungrouped.
func fallbackPlan(candidates []candidate) []plannedGroup {
	var plan []plannedGroup
	for i := 0; i+groupSize <= len(candidates); i += groupSize {
		members := make([]*types.Participant, 0, groupSize)
		for _, c := range candidates[i : i+groupSize] {
			members = append(members, c.participant)
		}
		plan = append(plan, plannedGroup{
			name:      fmt.Sprintf("Group %d", len(plan)+1),
			rationale: fallbackRationale,
			members:   members,
		})
	}
	return plan
}

func (gs *groupingService) replaceAll(ctx context.Context, plan []plannedGroup) error {
	return gs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := gs.groupRepo.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if err := gs.participantRepo.ClearCurrentGroups(ctx, tx); err != nil {
			return err
		}
		groups := make([]*types.Group, 0, len(plan))
		for i, g := range plan {
			groups = append(groups, &types.Group{Number: i + 1, Name: g.name, Rationale: g.rationale})
		}
		if _, err := gs.groupRepo.Create(ctx, tx, groups); err != nil {
			return err
		}
		for i, g := range plan {
			members := make([]*types.GroupMember, 0, len(g.members))
			ids := make([]uuid.UUID, 0, len(g.members))
			for pos, p := range g.members {
				members = append(members, &types.GroupMember{GroupID: groups[i].ID, ParticipantID: p.ID, Position: pos})
				ids = append(ids, p.ID)
			}
			if err := gs.groupRepo.CreateMembers(ctx, tx, members); err != nil {
				return err
			}
			if err := gs.participantRepo.SetCurrentGroup(ctx, tx, ids, groups[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func newGroupView(number int, name, rationale string, members []string) GroupView {
	if members == nil {
		members = []string{}
	}
	return GroupView{
		Number:           number,
		Name:             name,
		Members:          members,
		Rationale:        rationale,
		RationaleBullets: rationaleBullets(rationale),
		URL:              fmt.Sprintf("/group%d", number),
	}
}

func memberNames(g *types.Group) []string {
	names := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m.Participant != nil && m.Participant.Name != "" {
			names = append(names, m.Participant.Name)
		}
	}
	return names
}
