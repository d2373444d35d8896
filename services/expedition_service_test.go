package services

import (
	"testing"
	"time"

	"github.com/murali-mp/raastaa-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plannedTomorrow() time.Time {
	return time.Now().AddDate(0, 0, 1).Truncate(24 * time.Hour)
}

func createTeamExpedition(t *testing.T, svc *ExpeditionService, creatorID uint, vendorIDs []uint) *models.Expedition {
	t.Helper()
	expedition, err := svc.Create(creatorID, CreateExpeditionInput{
		Type:        models.ExpeditionTeam,
		Title:       "Old Delhi chaat crawl",
		PlannedDate: plannedTomorrow(),
		StartTime:   "18:30",
		VendorIDs:   vendorIDs,
	})
	require.NoError(t, err)
	return expedition
}

func TestCreateExpeditionVendorBounds(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")

	_, err := svc.Create(creator.ID, CreateExpeditionInput{
		Type:        models.ExpeditionSolo,
		Title:       "Empty crawl",
		PlannedDate: plannedTomorrow(),
		VendorIDs:   nil,
	})
	assert.ErrorIs(t, err, ErrValidation)

	vendorIDs := make([]uint, 0, 21)
	for i := 0; i < 21; i++ {
		vendorIDs = append(vendorIDs, createVendor(t, db, "stall").ID)
	}

	_, err = svc.Create(creator.ID, CreateExpeditionInput{
		Type:        models.ExpeditionSolo,
		Title:       "Marathon crawl",
		PlannedDate: plannedTomorrow(),
		VendorIDs:   vendorIDs,
	})
	assert.ErrorIs(t, err, ErrValidation)

	expedition, err := svc.Create(creator.ID, CreateExpeditionInput{
		Type:        models.ExpeditionSolo,
		Title:       "Max crawl",
		PlannedDate: plannedTomorrow(),
		VendorIDs:   vendorIDs[:20],
	})
	require.NoError(t, err)
	assert.Equal(t, 20, expedition.VendorCount)
	assert.Equal(t, models.ExpeditionDraft, expedition.Status)
}

func TestCreateExpeditionEnrollsCreator(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	vendor := createVendor(t, db, "momos")

	expedition := createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})

	var row models.ExpeditionParticipant
	require.NoError(t, db.Where("expedition_id = ? AND user_id = ?", expedition.ID, creator.ID).First(&row).Error)
	assert.Equal(t, models.RoleCreator, row.Role)
	assert.Equal(t, models.ParticipantAccepted, row.Status)
	assert.NotNil(t, row.JoinedAt)
}

func TestCreateExpeditionUnknownVendor(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")

	_, err := svc.Create(creator.ID, CreateExpeditionInput{
		Type:        models.ExpeditionSolo,
		Title:       "Ghost crawl",
		PlannedDate: plannedTomorrow(),
		VendorIDs:   []uint{999},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPublishOnlyCreator(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	other := createUser(t, db, "ravi")
	vendor := createVendor(t, db, "momos")

	expedition := createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})

	_, err := svc.Publish(other.ID, expedition.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	published, err := svc.Publish(creator.ID, expedition.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpeditionPlanned, published.Status)

	// publishing twice fails; the expedition is no longer DRAFT
	_, err = svc.Publish(creator.ID, expedition.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStatusTransitionsAreGuarded(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	vendor := createVendor(t, db, "momos")

	expedition := createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})

	// cannot start a draft
	_, err := svc.Start(creator.ID, expedition.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Publish(creator.ID, expedition.ID)
	require.NoError(t, err)

	started, err := svc.Start(creator.ID, expedition.ID)
	require.NoError(t, err)
	require.NotNil(t, started.StartedAt)

	// a completed expedition cannot be cancelled
	_, err = svc.Complete(creator.ID, expedition.ID, CompleteExpeditionInput{})
	require.NoError(t, err)
	_, err = svc.Cancel(creator.ID, expedition.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFullTeamExpeditionRewards(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	friend1 := createUser(t, db, "ravi")
	friend2 := createUser(t, db, "meena")

	vendors := []uint{
		createVendor(t, db, "momos").ID,
		createVendor(t, db, "chaat").ID,
		createVendor(t, db, "kulfi").ID,
	}
	expedition := createTeamExpedition(t, svc, creator.ID, vendors)

	invited, err := svc.Invite(creator.ID, expedition.ID, []uint{friend1.ID, friend2.ID})
	require.NoError(t, err)
	assert.Len(t, invited.Invited, 2)

	for _, friendID := range []uint{friend1.ID, friend2.ID} {
		resp, err := svc.Respond(friendID, expedition.ID, true)
		require.NoError(t, err)
		assert.False(t, resp.AlreadyResponded)
		assert.Equal(t, models.ParticipantAccepted, resp.Status)
	}

	_, err = svc.Publish(creator.ID, expedition.ID)
	require.NoError(t, err)
	_, err = svc.Start(creator.ID, expedition.ID)
	require.NoError(t, err)

	for _, vendorID := range vendors {
		result, err := svc.CheckIn(creator.ID, expedition.ID, vendorID, "")
		require.NoError(t, err)
		assert.False(t, result.AlreadyCheckedIn)
		assert.Equal(t, RewardCheckInBonus, result.CapsAwarded)
	}

	result, err := svc.Complete(creator.ID, expedition.ID, CompleteExpeditionInput{TotalSpent: 850})
	require.NoError(t, err)

	// TEAM base 75 + 3 visited stops x 10
	assert.Equal(t, int64(105), result.CapsPerMember)
	assert.Equal(t, 3, result.MembersRewarded)
	assert.Equal(t, int64(105), result.Expedition.BottleCapsEarned)

	// each member: 3 check-ins x 5 + 105 completion
	for _, id := range []uint{creator.ID, friend1.ID, friend2.ID} {
		var user models.User
		require.NoError(t, db.First(&user, id).Error)
		assert.Equal(t, int64(120), user.BottleCaps, "user %d", id)
	}
}

func TestCheckInIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	vendor := createVendor(t, db, "momos")

	expedition := createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})
	_, err := svc.Publish(creator.ID, expedition.ID)
	require.NoError(t, err)
	_, err = svc.Start(creator.ID, expedition.ID)
	require.NoError(t, err)

	first, err := svc.CheckIn(creator.ID, expedition.ID, vendor.ID, "")
	require.NoError(t, err)
	assert.False(t, first.AlreadyCheckedIn)

	second, err := svc.CheckIn(creator.ID, expedition.ID, vendor.ID, "")
	require.NoError(t, err)
	assert.True(t, second.AlreadyCheckedIn)
	assert.Zero(t, second.CapsAwarded)

	var user models.User
	require.NoError(t, db.First(&user, creator.ID).Error)
	assert.Equal(t, RewardCheckInBonus, user.BottleCaps)
}

func TestDoubleCompletePaysOnce(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	vendor := createVendor(t, db, "momos")

	expedition := createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})
	_, err := svc.Publish(creator.ID, expedition.ID)
	require.NoError(t, err)
	_, err = svc.Start(creator.ID, expedition.ID)
	require.NoError(t, err)
	_, err = svc.CheckIn(creator.ID, expedition.ID, vendor.ID, "")
	require.NoError(t, err)

	_, err = svc.Complete(creator.ID, expedition.ID, CompleteExpeditionInput{})
	require.NoError(t, err)

	_, err = svc.Complete(creator.ID, expedition.ID, CompleteExpeditionInput{})
	assert.ErrorIs(t, err, ErrInvalidState)

	var rewardCount int64
	require.NoError(t, db.Model(&models.BottleCapTransaction{}).
		Where("user_id = ? AND action_type = ?", creator.ID, models.ActionExpeditionComplete).
		Count(&rewardCount).Error)
	assert.Equal(t, int64(1), rewardCount)
}

func TestInviteCapacityCountsPending(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	vendor := createVendor(t, db, "momos")

	expedition, err := svc.Create(creator.ID, CreateExpeditionInput{
		Type:            models.ExpeditionTeam,
		Title:           "Tiny crawl",
		PlannedDate:     plannedTomorrow(),
		MaxParticipants: 2,
		VendorIDs:       []uint{vendor.ID},
	})
	require.NoError(t, err)

	friend1 := createUser(t, db, "ravi")
	friend2 := createUser(t, db, "meena")

	// creator takes one seat; a pending invite takes the other
	_, err = svc.Invite(creator.ID, expedition.ID, []uint{friend1.ID})
	require.NoError(t, err)

	_, err = svc.Invite(creator.ID, expedition.ID, []uint{friend2.ID})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestRespondAlreadyResponded(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	friend := createUser(t, db, "ravi")
	vendor := createVendor(t, db, "momos")

	expedition := createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})
	_, err := svc.Invite(creator.ID, expedition.ID, []uint{friend.ID})
	require.NoError(t, err)

	first, err := svc.Respond(friend.ID, expedition.ID, false)
	require.NoError(t, err)
	assert.False(t, first.AlreadyResponded)
	assert.Equal(t, models.ParticipantDeclined, first.Status)

	second, err := svc.Respond(friend.ID, expedition.ID, true)
	require.NoError(t, err)
	assert.True(t, second.AlreadyResponded)
	assert.Equal(t, models.ParticipantDeclined, second.Status)

	// responding with no invite at all is a 404
	stranger := createUser(t, db, "zoya")
	_, err = svc.Respond(stranger.ID, expedition.ID, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinPublicExpedition(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	joiner := createUser(t, db, "ravi")
	vendor := createVendor(t, db, "momos")

	expedition := createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})

	// not joinable while DRAFT
	_, err := svc.Join(joiner.ID, expedition.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Publish(creator.ID, expedition.ID)
	require.NoError(t, err)

	result, err := svc.Join(joiner.ID, expedition.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyJoined)

	again, err := svc.Join(joiner.ID, expedition.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyJoined)
}

func TestJoinAfterDeclineNeedsOpenSeat(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	declined := createUser(t, db, "ravi")
	filler := createUser(t, db, "zoya")
	vendor := createVendor(t, db, "momos")

	expedition, err := svc.Create(creator.ID, CreateExpeditionInput{
		Type:            models.ExpeditionTeam,
		Title:           "Tiny crawl",
		PlannedDate:     plannedTomorrow(),
		MaxParticipants: 2,
		VendorIDs:       []uint{vendor.ID},
	})
	require.NoError(t, err)

	_, err = svc.Invite(creator.ID, expedition.ID, []uint{declined.ID})
	require.NoError(t, err)
	_, err = svc.Publish(creator.ID, expedition.ID)
	require.NoError(t, err)
	_, err = svc.Respond(declined.ID, expedition.ID, false)
	require.NoError(t, err)

	// declining released the seat, so someone else can take it
	_, err = svc.Join(filler.ID, expedition.ID)
	require.NoError(t, err)

	// the roster is full again; changing their mind does not squeeze them in
	_, err = svc.Join(declined.ID, expedition.ID)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	var accepted int64
	require.NoError(t, db.Model(&models.ExpeditionParticipant{}).
		Where("expedition_id = ? AND status = ?", expedition.ID, models.ParticipantAccepted).
		Count(&accepted).Error)
	assert.EqualValues(t, 2, accepted)
}

func TestJoinWithPendingInviteKeepsSeat(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	invitee := createUser(t, db, "ravi")
	vendor := createVendor(t, db, "momos")

	expedition, err := svc.Create(creator.ID, CreateExpeditionInput{
		Type:            models.ExpeditionTeam,
		Title:           "Tiny crawl",
		PlannedDate:     plannedTomorrow(),
		MaxParticipants: 2,
		VendorIDs:       []uint{vendor.ID},
	})
	require.NoError(t, err)

	_, err = svc.Invite(creator.ID, expedition.ID, []uint{invitee.ID})
	require.NoError(t, err)
	_, err = svc.Publish(creator.ID, expedition.ID)
	require.NoError(t, err)

	// creator plus the pending invite already fill both seats, but the
	// invite reserved one of them
	result, err := svc.Join(invitee.ID, expedition.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyJoined)
}

func TestLeaveGuards(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	joiner := createUser(t, db, "ravi")
	vendor := createVendor(t, db, "momos")

	expedition := createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})
	_, err := svc.Publish(creator.ID, expedition.ID)
	require.NoError(t, err)
	_, err = svc.Join(joiner.ID, expedition.ID)
	require.NoError(t, err)

	// creator cannot leave their own expedition
	err = svc.Leave(creator.ID, expedition.ID)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.Leave(joiner.ID, expedition.ID))

	// leaving twice is a 404
	err = svc.Leave(joiner.ID, expedition.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// cannot leave once the expedition is underway
	_, err = svc.Join(joiner.ID, expedition.ID)
	require.NoError(t, err)
	_, err = svc.Start(creator.ID, expedition.ID)
	require.NoError(t, err)
	err = svc.Leave(joiner.ID, expedition.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// once the crawl is over, dropping off the roster is allowed again
	_, err = svc.Complete(creator.ID, expedition.ID, CompleteExpeditionInput{})
	require.NoError(t, err)
	require.NoError(t, svc.Leave(joiner.ID, expedition.ID))
}

func TestPrivateExpeditionVisibility(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	invited := createUser(t, db, "ravi")
	stranger := createUser(t, db, "zoya")
	vendor := createVendor(t, db, "momos")

	isPublic := false
	expedition, err := svc.Create(creator.ID, CreateExpeditionInput{
		Type:        models.ExpeditionTeam,
		Title:       "Secret supper",
		PlannedDate: plannedTomorrow(),
		IsPublic:    &isPublic,
		VendorIDs:   []uint{vendor.ID},
	})
	require.NoError(t, err)

	// the flag must survive the insert as written, not revert to public
	var stored models.Expedition
	require.NoError(t, db.First(&stored, expedition.ID).Error)
	assert.False(t, stored.IsPublic)

	_, err = svc.Invite(creator.ID, expedition.ID, []uint{invited.ID})
	require.NoError(t, err)

	detail, err := svc.GetByID(creator.ID, expedition.ID)
	require.NoError(t, err)
	assert.True(t, detail.IsCreator)

	detail, err = svc.GetByID(invited.ID, expedition.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.InviteStatus)
	assert.Equal(t, models.ParticipantInvited, *detail.InviteStatus)

	_, err = svc.GetByID(stranger.ID, expedition.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDiscoverFiltering(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	viewer := createUser(t, db, "ravi")
	vendor := createVendor(t, db, "momos")

	public := createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})
	_, err := svc.Publish(creator.ID, public.ID)
	require.NoError(t, err)

	// still in DRAFT, must not appear
	createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})

	// solo, must not appear
	_, err = svc.Create(creator.ID, CreateExpeditionInput{
		Type:        models.ExpeditionSolo,
		Title:       "Solo snack run",
		PlannedDate: plannedTomorrow(),
		VendorIDs:   []uint{vendor.ID},
	})
	require.NoError(t, err)

	page, err := svc.Discover(viewer.ID, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, public.ID, page.Items[0].ID)
	assert.Equal(t, 9, page.Items[0].SpotsAvailable)

	// own expeditions never show up in discovery
	page, err = svc.Discover(creator.ID, "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestGetUserExpeditionsPagination(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	vendor := createVendor(t, db, "momos")

	for i := 0; i < 5; i++ {
		createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})
	}

	page, err := svc.GetUserExpeditions(creator.ID, ListFilter{}, "", 3)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)

	rest, err := svc.GetUserExpeditions(creator.ID, ListFilter{}, *page.NextCursor, 3)
	require.NoError(t, err)
	assert.Len(t, rest.Items, 2)
	assert.False(t, rest.HasMore)
	assert.Nil(t, rest.NextCursor)

	// filtered by status
	draftOnly, err := svc.GetUserExpeditions(creator.ID, ListFilter{Status: models.ExpeditionDraft}, "", 10)
	require.NoError(t, err)
	assert.Len(t, draftOnly.Items, 5)
}

func TestPendingInvitesListing(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	friend := createUser(t, db, "ravi")
	vendor := createVendor(t, db, "momos")

	expedition := createTeamExpedition(t, svc, creator.ID, []uint{vendor.ID})
	_, err := svc.Invite(creator.ID, expedition.ID, []uint{friend.ID})
	require.NoError(t, err)

	invites, err := svc.GetPendingInvites(friend.ID)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, expedition.ID, invites[0].Expedition.ID)
	assert.False(t, invites[0].InvitedAt.IsZero())

	_, err = svc.Respond(friend.ID, expedition.ID, true)
	require.NoError(t, err)

	invites, err = svc.GetPendingInvites(friend.ID)
	require.NoError(t, err)
	assert.Empty(t, invites)
}

func TestSkipStop(t *testing.T) {
	db := newTestDB(t)
	svc := newExpeditionService(t, db)
	creator := createUser(t, db, "asha")
	vendorA := createVendor(t, db, "momos")
	vendorB := createVendor(t, db, "chaat")

	expedition := createTeamExpedition(t, svc, creator.ID, []uint{vendorA.ID, vendorB.ID})
	_, err := svc.Publish(creator.ID, expedition.ID)
	require.NoError(t, err)
	_, err = svc.Start(creator.ID, expedition.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Skip(creator.ID, expedition.ID, vendorB.ID))

	// skipped stops earn nothing on completion
	_, err = svc.CheckIn(creator.ID, expedition.ID, vendorA.ID, "")
	require.NoError(t, err)
	result, err := svc.Complete(creator.ID, expedition.ID, CompleteExpeditionInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.VisitedStops)
	assert.Equal(t, RewardExpeditionTeamBase+RewardExpeditionPerVendor, result.CapsPerMember)

	// a skipped stop cannot be skipped again
	err = svc.Skip(creator.ID, expedition.ID, vendorB.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}
