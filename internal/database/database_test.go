package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/tagbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	groups    *GroupRepository
	users     *UserRepository
	reminders *ReminderRepository
}

func newFixture(t *testing.T) fixture {
	db := openTestDB(t)
	return fixture{
		groups:    NewGroupRepository(db),
		users:     NewUserRepository(db),
		reminders: NewReminderRepository(db),
	}
}

// seed registers one group and one member and returns their row IDs
func (f fixture) seed(t *testing.T, chatID int64, username string) (userID, groupID int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.groups.Ensure(ctx, chatID, "Team"); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if _, err := f.users.Ensure(ctx, chatID, username); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	g, err := f.groups.GetByChatID(ctx, chatID)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	u, err := f.users.GetByChatAndUsername(ctx, chatID, username)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u.ID, g.ID
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := InitSchema(db); err != nil {
		t.Fatalf("second InitSchema: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestGroupEnsureKeepsFirstName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.groups.Ensure(ctx, 100, "First")
	if err != nil || !created {
		t.Fatalf("first Ensure = %v, %v; want true, nil", created, err)
	}
	created, err = f.groups.Ensure(ctx, 100, "Second")
	if err != nil || created {
		t.Fatalf("second Ensure = %v, %v; want false, nil", created, err)
	}

	g, err := f.groups.GetByChatID(ctx, 100)
	if err != nil {
		t.Fatalf("GetByChatID: %v", err)
	}
	if g.Name != "First" {
		t.Fatalf("Name = %q, want First", g.Name)
	}

	byID, err := f.groups.GetByID(ctx, g.ID)
	if err != nil || byID.ChatID != 100 {
		t.Fatalf("GetByID = %+v, %v", byID, err)
	}
}

func TestGroupLookupMiss(t *testing.T) {
	f := newFixture(t)
	if _, err := f.groups.GetByChatID(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUserEnsureScopedPerChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, chatID := range []int64{100, 200} {
		created, err := f.users.Ensure(ctx, chatID, "@alice")
		if err != nil || !created {
			t.Fatalf("Ensure(%d) = %v, %v", chatID, created, err)
		}
	}
	created, err := f.users.Ensure(ctx, 100, "@alice")
	if err != nil || created {
		t.Fatalf("duplicate Ensure = %v, %v; want false, nil", created, err)
	}

	names, err := f.users.ListUsernames(ctx, 100)
	if err != nil {
		t.Fatalf("ListUsernames: %v", err)
	}
	if len(names) != 1 || names[0] != "@alice" {
		t.Fatalf("names = %v", names)
	}
}

func TestUserEnsureConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.users.Ensure(ctx, 100, "@bob"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Ensure: %v", err)
	}

	names, err := f.users.ListUsernames(ctx, 100)
	if err != nil {
		t.Fatalf("ListUsernames: %v", err)
	}
	if len(names) != 1 {
		t.Fatalf("expected one row, got %v", names)
	}
}

func TestUserDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, groupID := f.seed(t, 100, "@alice")

	if _, err := f.reminders.Upsert(ctx, &models.Reminder{UserID: userID, GroupID: groupID, Time: "09:00", Text: "Standup"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	removed, err := f.users.Delete(ctx, 100, "@alice")
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v", removed, err)
	}
	removed, err = f.users.Delete(ctx, 100, "@alice")
	if err != nil || removed {
		t.Fatalf("second Delete = %v, %v", removed, err)
	}

	due, err := f.reminders.GetDueAt(ctx, "09:00")
	if err != nil {
		t.Fatalf("GetDueAt: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("owner removal should cascade to reminders, got %v", due)
	}
}

func TestReminderUpsertReplacesExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, groupID := f.seed(t, 100, "@alice")

	first := &models.Reminder{UserID: userID, GroupID: groupID, Time: "09:00", Text: "Standup"}
	replaced, err := f.reminders.Upsert(ctx, first)
	if err != nil || replaced {
		t.Fatalf("first Upsert = %v, %v", replaced, err)
	}
	if first.ID == 0 {
		t.Fatal("expected ID to be set")
	}

	second := &models.Reminder{UserID: userID, GroupID: groupID, Time: "10:30", Text: "Retro"}
	replaced, err = f.reminders.Upsert(ctx, second)
	if err != nil || !replaced {
		t.Fatalf("second Upsert = %v, %v", replaced, err)
	}
	if second.ID != first.ID {
		t.Fatalf("ID = %d, want %d", second.ID, first.ID)
	}

	got, err := f.reminders.GetByOwner(ctx, userID, groupID)
	if err != nil {
		t.Fatalf("GetByOwner: %v", err)
	}
	if got.Time != "10:30" || got.Text != "Retro" || got.ChatID != 100 || got.Username != "@alice" {
		t.Fatalf("unexpected reminder %+v", got)
	}
}

func TestReminderUpsertRequiresOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.reminders.Upsert(context.Background(), &models.Reminder{UserID: 7, GroupID: 9, Time: "09:00", Text: "x"})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestReminderUpdateByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, groupID := f.seed(t, 100, "@alice")

	rows, err := f.reminders.UpdateByOwner(ctx, userID, groupID, "11:00", "nothing")
	if err != nil || rows != 0 {
		t.Fatalf("update without reminder = %d, %v", rows, err)
	}

	if _, err := f.reminders.Upsert(ctx, &models.Reminder{UserID: userID, GroupID: groupID, Time: "09:00", Text: "Standup"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rows, err = f.reminders.UpdateByOwner(ctx, userID, groupID, "11:00", "Lunch")
	if err != nil || rows != 1 {
		t.Fatalf("UpdateByOwner = %d, %v", rows, err)
	}

	if due, _ := f.reminders.GetDueAt(ctx, "09:00"); len(due) != 0 {
		t.Fatalf("old time still matches: %v", due)
	}
	due, err := f.reminders.GetDueAt(ctx, "11:00")
	if err != nil {
		t.Fatalf("GetDueAt: %v", err)
	}
	if len(due) != 1 || due[0].Text != "Lunch" || due[0].ChatID != 100 {
		t.Fatalf("due = %+v", due)
	}
}

func TestReminderDeleteByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, groupID := f.seed(t, 100, "@alice")

	if _, err := f.reminders.Upsert(ctx, &models.Reminder{UserID: userID, GroupID: groupID, Time: "09:00", Text: "Standup"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rows, err := f.reminders.DeleteByOwner(ctx, userID, groupID)
	if err != nil || rows != 1 {
		t.Fatalf("DeleteByOwner = %d, %v", rows, err)
	}
	rows, err = f.reminders.DeleteByOwner(ctx, userID, groupID)
	if err != nil || rows != 0 {
		t.Fatalf("second DeleteByOwner = %d, %v", rows, err)
	}
	if _, err := f.reminders.GetByOwner(ctx, userID, groupID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByOwner err = %v, want ErrNotFound", err)
	}
}

func TestReminderListByChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceID, groupID := f.seed(t, 100, "@alice")
	bobID, _ := f.seed(t, 100, "@bob")
	otherUser, otherGroup := f.seed(t, 200, "@carol")

	for _, rem := range []*models.Reminder{
		{UserID: bobID, GroupID: groupID, Time: "17:00", Text: "Wrap up"},
		{UserID: aliceID, GroupID: groupID, Time: "09:00", Text: "Standup"},
		{UserID: otherUser, GroupID: otherGroup, Time: "08:00", Text: "Other"},
	} {
		if _, err := f.reminders.Upsert(ctx, rem); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	list, err := f.reminders.ListByChat(ctx, 100)
	if err != nil {
		t.Fatalf("ListByChat: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Time != "09:00" || list[0].Username != "@alice" || list[1].Username != "@bob" {
		t.Fatalf("unexpected order %+v", list)
	}
}
