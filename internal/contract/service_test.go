package contract_test

import (
	"context"
	"testing"
	"time"

	"taskpay/escrow-service/internal/commission"
	"taskpay/escrow-service/internal/contract"
	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/money"
	"taskpay/escrow-service/internal/notify"
)

var (
	t0      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	weekEnd = t0.AddDate(0, 0, 7)
)

func basicInput(escrow bool) contract.CreateInput {
	return contract.CreateInput{
		JobID:       "job-1",
		RequesterID: "req-1",
		WorkerID:    "wrk-1",
		BasePrice:   eur(10000),
		StartDate:   t0,
		EndDate:     weekEnd,
		Escrow:      escrow,
	}
}

func setupParties(env *testEnv) {
	env.members.addUser("req-1", true, commission.Profile{Tier: commission.TierBasic})
	env.members.addUser("wrk-1", true, commission.Profile{Tier: commission.TierBasic})
}

// mustCreate creates a draft contract or fails the test.
func mustCreate(t *testing.T, env *testEnv, in contract.CreateInput) *contract.Contract {
	t.Helper()
	c, err := env.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

// advanceToAccepted walks a draft contract through proposal acceptance and
// dual pairing confirmation.
func advanceToAccepted(t *testing.T, env *testEnv, id string) *contract.Contract {
	t.Helper()
	ctx := context.Background()
	c, err := env.svc.AcceptProposal(ctx, id, "req-1", t0)
	if err != nil {
		t.Fatalf("AcceptProposal: %v", err)
	}
	code := c.PairingCode
	if _, err := env.svc.ConfirmPairing(ctx, id, "req-1", code, t0.Add(time.Hour)); err != nil {
		t.Fatalf("ConfirmPairing(requester): %v", err)
	}
	c, err = env.svc.ConfirmPairing(ctx, id, "wrk-1", code, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ConfirmPairing(worker): %v", err)
	}
	return c
}

// ── Create ─────────────────────────────────────────────────────────────────

func TestCreate_QuotesCommission(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(true))

	if c.Status != contract.StatusDraft {
		t.Errorf("new contract status = %s, want draft", c.Status)
	}
	if c.Commission.Amount != 500 { // 5% of 10000
		t.Errorf("commission = %d, want 500", c.Commission.Amount)
	}
	if c.TotalPrice.Amount != 10500 {
		t.Errorf("total = %d, want 10500", c.TotalPrice.Amount)
	}
}

func TestCreate_FreeCreditZeroesCommission(t *testing.T) {
	env := newTestEnv()
	env.members.addUser("req-1", true, commission.Profile{
		Tier: commission.TierBasic, FreeContractsRemaining: 1,
	})
	env.members.addUser("wrk-1", true, commission.Profile{})

	c := mustCreate(t, env, basicInput(false))

	if c.Commission.Amount != 0 {
		t.Errorf("commission = %d, want 0 (free credit)", c.Commission.Amount)
	}
	p, _ := env.members.Profile(context.Background(), "req-1")
	if p.FreeContractsRemaining != 0 {
		t.Errorf("free contracts remaining = %d, want 0 after consumption", p.FreeContractsRemaining)
	}
}

func TestCreate_Rejections(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	sameParty := basicInput(false)
	sameParty.WorkerID = "req-1"

	badDates := basicInput(false)
	badDates.EndDate = t0.AddDate(0, 0, -1)

	negative := basicInput(false)
	negative.BasePrice = money.Money{Amount: -5, Currency: "EUR"}

	for name, in := range map[string]contract.CreateInput{
		"same party":       sameParty,
		"end before start": badDates,
		"negative price":   negative,
	} {
		if _, err := env.svc.Create(context.Background(), in); !apperr.Is(err, apperr.CodeValidation) {
			t.Errorf("%s: got %v, want VALIDATION", name, err)
		}
	}
}

// ── Pairing ────────────────────────────────────────────────────────────────

func TestAcceptProposal_RequiresVerifiedParties(t *testing.T) {
	env := newTestEnv()
	env.members.addUser("req-1", true, commission.Profile{})
	env.members.addUser("wrk-1", false, commission.Profile{}) // not verified

	c := mustCreate(t, env, basicInput(true))

	_, err := env.svc.AcceptProposal(context.Background(), c.ID, "req-1", t0)
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("unverified worker: got %v, want VALIDATION", err)
	}
}

func TestAcceptProposal_DeliversPairingCode(t *testing.T) {
	env := newTestEnv()
	setupParties(env)
	ctx := context.Background()

	c := mustCreate(t, env, basicInput(true))
	if _, err := env.svc.AcceptProposal(ctx, c.ID, "req-1", t0); err != nil {
		t.Fatalf("AcceptProposal: %v", err)
	}

	var code string
	for _, ev := range env.notifier.events {
		if ev.Type == notify.EventPairingCodeIssued {
			code = ev.Data["pairingCode"]
			if len(ev.Recipients) != 2 {
				t.Errorf("pairing code recipients = %v, want both parties", ev.Recipients)
			}
		}
	}
	if code == "" {
		t.Fatal("no pairing code event was delivered")
	}

	// The delivered code is the one the confirmation checks.
	if _, err := env.svc.ConfirmPairing(ctx, c.ID, "req-1", code, t0.Add(time.Hour)); err != nil {
		t.Fatalf("ConfirmPairing(requester) with delivered code: %v", err)
	}
	got, err := env.svc.ConfirmPairing(ctx, c.ID, "wrk-1", code, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("ConfirmPairing(worker) with delivered code: %v", err)
	}
	if got.Status != contract.StatusAccepted {
		t.Errorf("status = %s, want accepted", got.Status)
	}
}

func TestConfirmPairing_BothPartiesAccept(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(true))
	c = advanceToAccepted(t, env, c.ID)

	if c.Status != contract.StatusAccepted {
		t.Errorf("status = %s, want accepted after both confirmations", c.Status)
	}
}

func TestConfirmPairing_WrongCode(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(true))
	if _, err := env.svc.AcceptProposal(context.Background(), c.ID, "req-1", t0); err != nil {
		t.Fatalf("AcceptProposal: %v", err)
	}

	_, err := env.svc.ConfirmPairing(context.Background(), c.ID, "wrk-1", "WRONG0", t0.Add(time.Hour))
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("wrong code: got %v, want VALIDATION", err)
	}
}

func TestConfirmPairing_ExpiredWindowCancels(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(true))
	c2, err := env.svc.AcceptProposal(context.Background(), c.ID, "req-1", t0)
	if err != nil {
		t.Fatalf("AcceptProposal: %v", err)
	}

	late := t0.Add(contract.DefaultPairingTTL + time.Minute)
	_, err = env.svc.ConfirmPairing(context.Background(), c.ID, "wrk-1", c2.PairingCode, late)
	if !apperr.Is(err, apperr.CodePairingExpired) {
		t.Errorf("late confirmation: got %v, want PAIRING_EXPIRED", err)
	}

	got, _ := env.svc.Get(context.Background(), c.ID)
	if got.Status != contract.StatusCancelled {
		t.Errorf("status after expiry = %s, want cancelled", got.Status)
	}
}

func TestConfirmPairing_NoEscrowSkipsCode(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(false))
	if _, err := env.svc.AcceptProposal(context.Background(), c.ID, "req-1", t0); err != nil {
		t.Fatalf("AcceptProposal: %v", err)
	}

	// Without escrow the code is not checked — dual confirmation suffices.
	if _, err := env.svc.ConfirmPairing(context.Background(), c.ID, "req-1", "", t0.Add(time.Hour)); err != nil {
		t.Fatalf("ConfirmPairing(requester): %v", err)
	}
	got, err := env.svc.ConfirmPairing(context.Background(), c.ID, "wrk-1", "", t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("ConfirmPairing(worker): %v", err)
	}
	if got.Status != contract.StatusAccepted {
		t.Errorf("status = %s, want accepted", got.Status)
	}
}

// ── StartWork / MarkCompleted ──────────────────────────────────────────────

func TestStartWork_EscrowMustBeHeld(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(true))
	advanceToAccepted(t, env, c.ID)

	_, err := env.svc.StartWork(context.Background(), c.ID, t0)
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("start without escrow hold: got %v, want VALIDATION", err)
	}

	if err := env.svc.MarkEscrowHeld(context.Background(), c.ID, eur(10500)); err != nil {
		t.Fatalf("MarkEscrowHeld: %v", err)
	}
	got, _ := env.svc.Get(context.Background(), c.ID)
	if got.Status != contract.StatusInProgress {
		t.Errorf("status after hold = %s, want in_progress", got.Status)
	}
}

func TestMarkEscrowHeld_RedriveIsQuiet(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(true))
	advanceToAccepted(t, env, c.ID)

	if err := env.svc.MarkEscrowHeld(context.Background(), c.ID, eur(10500)); err != nil {
		t.Fatalf("MarkEscrowHeld: %v", err)
	}
	// Duplicate capture confirmation re-drives with the same total.
	if err := env.svc.MarkEscrowHeld(context.Background(), c.ID, eur(10500)); err != nil {
		t.Fatalf("re-drive: %v", err)
	}
	if n := env.notifier.count(notify.EventEscrowHeld); n != 1 {
		t.Errorf("hold notifications = %d, want exactly 1", n)
	}

	// An extension delta raises the total; the update goes through.
	if err := env.svc.MarkEscrowHeld(context.Background(), c.ID, eur(12500)); err != nil {
		t.Fatalf("delta hold: %v", err)
	}
	got, _ := env.svc.Get(context.Background(), c.ID)
	if got.Escrow.Amount.Amount != 12500 {
		t.Errorf("held amount = %d, want 12500", got.Escrow.Amount.Amount)
	}
}

func TestStartWork_NoEscrowWaitsForStartDate(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(false))
	advanceToAccepted(t, env, c.ID)

	if _, err := env.svc.StartWork(context.Background(), c.ID, t0.Add(-time.Hour)); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("start before start date: got %v, want VALIDATION", err)
	}
	if _, err := env.svc.StartWork(context.Background(), c.ID, t0.Add(time.Hour)); err != nil {
		t.Errorf("start after start date: %v", err)
	}
}

func TestMarkCompleted_OnlyWorker(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(false))
	advanceToAccepted(t, env, c.ID)
	if _, err := env.svc.StartWork(context.Background(), c.ID, t0.Add(time.Hour)); err != nil {
		t.Fatalf("StartWork: %v", err)
	}

	if _, err := env.svc.MarkCompleted(context.Background(), c.ID, "req-1", weekEnd); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("requester marking complete: got %v, want VALIDATION", err)
	}

	got, err := env.svc.MarkCompleted(context.Background(), c.ID, "wrk-1", weekEnd)
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if got.Status != contract.StatusWaitingApproval {
		t.Errorf("status = %s, want waiting_approval", got.Status)
	}
	if got.WorkCompletedAt == nil || !got.WorkCompletedAt.Equal(weekEnd) {
		t.Errorf("workCompletedAt = %v, want %v", got.WorkCompletedAt, weekEnd)
	}
}

// ── Cancel ─────────────────────────────────────────────────────────────────

func TestCancel_BlockedWhileEscrowHeld(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(true))
	advanceToAccepted(t, env, c.ID)
	if err := env.svc.MarkEscrowHeld(context.Background(), c.ID, eur(10500)); err != nil {
		t.Fatalf("MarkEscrowHeld: %v", err)
	}

	_, err := env.svc.Cancel(context.Background(), c.ID, "req-1")
	if !apperr.Is(err, apperr.CodeEscrowHeld) {
		t.Errorf("cancel with held escrow: got %v, want ESCROW_HELD", err)
	}
}

func TestCancel_DraftAllowed(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(false))
	got, err := env.svc.Cancel(context.Background(), c.ID, "wrk-1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != contract.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
}

func TestSoftDelete_OnlyTerminal(t *testing.T) {
	env := newTestEnv()
	setupParties(env)

	c := mustCreate(t, env, basicInput(false))
	if err := env.svc.SoftDelete(context.Background(), c.ID, "req-1"); !apperr.Is(err, apperr.CodeInvalidTransition) {
		t.Errorf("delete draft: got %v, want INVALID_TRANSITION", err)
	}

	if _, err := env.svc.Cancel(context.Background(), c.ID, "req-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := env.svc.SoftDelete(context.Background(), c.ID, "req-1"); err != nil {
		t.Errorf("delete cancelled contract: %v", err)
	}
	got, _ := env.svc.Get(context.Background(), c.ID)
	if !got.Deleted {
		t.Error("contract should carry the deleted marker")
	}
}

// ── Extensions ─────────────────────────────────────────────────────────────

func startedContract(t *testing.T, env *testEnv) *contract.Contract {
	t.Helper()
	c := mustCreate(t, env, basicInput(false))
	advanceToAccepted(t, env, c.ID)
	c, err := env.svc.StartWork(context.Background(), c.ID, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	return c
}

func TestExtension_AcceptMovesEndDate(t *testing.T) {
	env := newTestEnv()
	setupParties(env)
	c := startedContract(t, env)

	if _, err := env.svc.RequestExtension(context.Background(), c.ID, "wrk-1", 5, nil, t0.AddDate(0, 0, 3)); err != nil {
		t.Fatalf("RequestExtension: %v", err)
	}

	got, delta, err := env.svc.RespondToExtension(context.Background(), c.ID, "req-1", true, t0.AddDate(0, 0, 4))
	if err != nil {
		t.Fatalf("RespondToExtension: %v", err)
	}
	if delta != nil {
		t.Errorf("delta = %v, want nil for a price-neutral extension", delta)
	}
	if want := weekEnd.AddDate(0, 0, 5); !got.EndDate.Equal(want) {
		t.Errorf("endDate = %v, want %v", got.EndDate, want)
	}
	if got.ExtensionCount != 1 || len(got.Extensions) != 1 {
		t.Errorf("extension history = (%d, %d entries), want (1, 1)", got.ExtensionCount, len(got.Extensions))
	}
}

func TestExtension_AcceptWithPriceDelta(t *testing.T) {
	env := newTestEnv()
	setupParties(env)
	c := startedContract(t, env)

	newPrice := eur(c.TotalPrice.Amount + 2000)
	if _, err := env.svc.RequestExtension(context.Background(), c.ID, "req-1", 3, &newPrice, t0.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("RequestExtension: %v", err)
	}

	got, delta, err := env.svc.RespondToExtension(context.Background(), c.ID, "wrk-1", true, t0.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("RespondToExtension: %v", err)
	}
	if delta == nil || delta.Amount != 2000 {
		t.Fatalf("delta = %v, want 2000", delta)
	}
	if got.TotalPrice.Amount != c.TotalPrice.Amount+2000 {
		t.Errorf("totalPrice = %d, want %d", got.TotalPrice.Amount, c.TotalPrice.Amount+2000)
	}
	// The original capture is immutable: the delta goes to basePrice, the
	// commission stays as quoted.
	if got.Commission.Amount != c.Commission.Amount {
		t.Errorf("commission changed: %d → %d", c.Commission.Amount, got.Commission.Amount)
	}
}

func TestExtension_RejectRestoresState(t *testing.T) {
	env := newTestEnv()
	setupParties(env)
	c := startedContract(t, env)

	newPrice := eur(c.TotalPrice.Amount + 1000)
	if _, err := env.svc.RequestExtension(context.Background(), c.ID, "wrk-1", 5, &newPrice, t0.AddDate(0, 0, 3)); err != nil {
		t.Fatalf("RequestExtension: %v", err)
	}

	got, delta, err := env.svc.RespondToExtension(context.Background(), c.ID, "req-1", false, t0.AddDate(0, 0, 4))
	if err != nil {
		t.Fatalf("RespondToExtension: %v", err)
	}
	if delta != nil {
		t.Errorf("delta = %v, want nil on rejection", delta)
	}
	if got.Status != contract.StatusInProgress {
		t.Errorf("status = %s, want in_progress restored", got.Status)
	}
	if !got.EndDate.Equal(weekEnd) || got.TotalPrice.Amount != c.TotalPrice.Amount {
		t.Errorf("rejected extension must not change endDate/price: %v %d", got.EndDate, got.TotalPrice.Amount)
	}
	if got.PendingExtensionDays != 0 || got.PendingNewPrice != nil {
		t.Error("staged extension fields must be cleared after rejection")
	}
}

func TestExtension_Rejections(t *testing.T) {
	env := newTestEnv()
	setupParties(env)
	c := startedContract(t, env)
	ctx := context.Background()

	if _, err := env.svc.RequestExtension(ctx, c.ID, "wrk-1", 0, nil, t0); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("zero days: got %v, want VALIDATION", err)
	}

	lower := eur(c.TotalPrice.Amount - 1)
	if _, err := env.svc.RequestExtension(ctx, c.ID, "wrk-1", 3, &lower, t0); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("price decrease: got %v, want VALIDATION", err)
	}

	if _, err := env.svc.RequestExtension(ctx, c.ID, "wrk-1", 3, nil, t0); err != nil {
		t.Fatalf("RequestExtension: %v", err)
	}
	if _, err := env.svc.RequestExtension(ctx, c.ID, "req-1", 2, nil, t0); !apperr.Is(err, apperr.CodeConflict) {
		t.Errorf("second pending extension: got %v, want CONFLICT", err)
	}

	// The requester of the extension cannot also respond to it.
	if _, _, err := env.svc.RespondToExtension(ctx, c.ID, "wrk-1", true, t0); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("self-response: got %v, want VALIDATION", err)
	}
}

// ── AllocateWorkers ────────────────────────────────────────────────────────

func TestAllocateWorkers_CreatesOneContractPerWorker(t *testing.T) {
	env := newTestEnv()
	setupParties(env)
	env.members.addUser("wrk-2", true, commission.Profile{})

	contracts, err := env.svc.AllocateWorkers(context.Background(), contract.JobAllocation{
		JobID:       "job-multi",
		RequesterID: "req-1",
		JobPrice:    eur(10000),
		StartDate:   t0,
		EndDate:     weekEnd,
		Allocations: []contract.Allocation{
			{WorkerID: "wrk-1", Amount: eurp(6000)},
			{WorkerID: "wrk-2", Percent: ratep(4000)},
		},
	})
	if err != nil {
		t.Fatalf("AllocateWorkers: %v", err)
	}
	if len(contracts) != 2 {
		t.Fatalf("created %d contracts, want 2", len(contracts))
	}
	for _, c := range contracts {
		if c.AllocatedAmount == nil {
			t.Errorf("contract %s missing allocated amount", c.ID)
		}
	}
}

func TestAllocateWorkers_CountsExistingAllocations(t *testing.T) {
	env := newTestEnv()
	setupParties(env)
	env.members.addUser("wrk-2", true, commission.Profile{})

	first := contract.JobAllocation{
		JobID:       "job-multi",
		RequesterID: "req-1",
		JobPrice:    eur(10000),
		StartDate:   t0,
		EndDate:     weekEnd,
		Allocations: []contract.Allocation{{WorkerID: "wrk-1", Amount: eurp(7000)}},
	}
	if _, err := env.svc.AllocateWorkers(context.Background(), first); err != nil {
		t.Fatalf("first allocation: %v", err)
	}

	second := first
	second.Allocations = []contract.Allocation{{WorkerID: "wrk-2", Amount: eurp(4000)}}
	_, err := env.svc.AllocateWorkers(context.Background(), second)
	if !apperr.Is(err, apperr.CodeAllocationExceeded) {
		t.Errorf("oversell: got %v, want ALLOCATION_EXCEEDED", err)
	}

	third := first
	third.Allocations = []contract.Allocation{{WorkerID: "wrk-2", Amount: eurp(3000)}}
	if _, err := env.svc.AllocateWorkers(context.Background(), third); err != nil {
		t.Errorf("allocation within remaining budget: %v", err)
	}
}
