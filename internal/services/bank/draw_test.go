package bank

import (
	"errors"
	"slices"
	"testing"

	"github.com/fastprodman/duxbank/internal/events"
	"github.com/fastprodman/duxbank/internal/gacha"
	"github.com/fastprodman/duxbank/internal/services/bank/banktest"
)

var defaultSupply = []int{-1, -1, 500, 100, 50, 10, 3, 1}

func TestPull_FreeUnitAcquire(t *testing.T) {
	t.Parallel()

	b, roller := newTestBank(t, 700)
	mustJoin(t, b, "U")

	res, err := b.Pull("U", 1)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if len(res.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(res.Outcomes))
	}

	o := res.Outcomes[0]
	if o.Kind != OutcomeAcquire || o.Tier != gacha.TierUncommon || o.Roll != 700 {
		t.Fatalf("unexpected outcome %+v", o)
	}

	coll, _ := b.GetCollection("U")
	if coll[gacha.TierUncommon] != 1 {
		t.Fatalf("collection[2] = %d, want 1", coll[gacha.TierUncommon])
	}

	if pool := b.Pool(); pool[gacha.TierUncommon] != 499 {
		t.Fatalf("pool[2] = %d, want 499", pool[gacha.TierUncommon])
	}

	mustBalance(t, b, "U", 100)

	free, _ := b.HasFreePull("U")
	if free || !res.FreeUsed || res.Charged != 0 {
		t.Fatalf("free pull not consumed: free=%v res=%+v", free, res)
	}

	if maxes := roller.Maxes(); !slices.Equal(maxes, []int{1000}) {
		t.Fatalf("roll maxes = %v, want [1000]", maxes)
	}

	mustConserve(t, b)
}

func TestPull_NukeResetsEverything(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	roller := banktest.NewScripted(1)

	b, err := New(gacha.Default(), WithRoller(roller), WithPublisher(pub))
	if err != nil {
		t.Fatalf("new bank: %v", err)
	}

	mustJoin(t, b, "U", "V")

	for _, tier := range []gacha.Tier{gacha.TierRare, gacha.Tier1000Chan, gacha.TierTrash} {
		if err := b.AddToCollection("V", tier); err != nil {
			t.Fatalf("seed collection: %v", err)
		}
	}

	res, err := b.Pull("U", 1)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if !res.Nuked() || res.Outcomes[0].Kind != OutcomeNuke {
		t.Fatalf("want nuke, got %+v", res.Outcomes)
	}

	for _, id := range []UserID{"U", "V"} {
		coll, _ := b.GetCollection(id)
		for tier, c := range coll {
			if c != 0 {
				t.Fatalf("%s collection[%d] = %d after nuke", id, tier, c)
			}
		}
	}

	if pool := b.Pool(); !slices.Equal(pool, defaultSupply) {
		t.Fatalf("pool = %v, want %v", pool, defaultSupply)
	}

	if !slices.Contains(pub.kinds(), events.KindNuke) {
		t.Fatalf("nuke event not published: %v", pub.kinds())
	}

	mustConserve(t, b)
}

func TestPull_InsufficientFunds(t *testing.T) {
	t.Parallel()

	b, roller := newTestBank(t)
	mustJoin(t, b, "U")
	setBalance(t, b, "U", 5)

	err := b.SetFreePull("U", false)
	if err != nil {
		t.Fatalf("set free pull: %v", err)
	}

	res, err := b.Pull("U", 1)

	var ife *InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("want *InsufficientFundsError, got %v", err)
	}

	if ife.Required != 10 || ife.Available != 5 {
		t.Fatalf("error detail = %+v, want required 10 available 5", ife)
	}

	if len(res.Outcomes) != 0 || roller.Remaining() != 0 || len(roller.Maxes()) != 0 {
		t.Fatalf("no draw may happen: %+v", res)
	}

	mustBalance(t, b, "U", 5)
}

func TestPull_FreeUnitSurvivesPaidShortfall(t *testing.T) {
	t.Parallel()

	b, _ := newTestBank(t, 200)
	mustJoin(t, b, "U")
	setBalance(t, b, "U", 5)

	res, err := b.Pull("U", 3)

	var ife *InsufficientFundsError
	if !errors.As(err, &ife) || ife.Required != 20 || ife.Available != 5 {
		t.Fatalf("want insufficient funds 20/5, got %v", err)
	}

	if !res.FreeUsed || len(res.Outcomes) != 1 || res.Outcomes[0].Tier != gacha.TierCommon {
		t.Fatalf("free unit must still be drawn: %+v", res)
	}

	free, _ := b.HasFreePull("U")
	if free {
		t.Fatalf("free pull must be consumed")
	}

	mustBalance(t, b, "U", 5)
}

func TestPull_Range(t *testing.T) {
	t.Parallel()

	b, roller := newTestBank(t)
	mustJoin(t, b, "U")

	for _, amount := range []int{0, 11, -1} {
		_, err := b.Pull("U", amount)

		var oor *OutOfRangeError
		if !errors.As(err, &oor) {
			t.Fatalf("amount %d: want *OutOfRangeError, got %v", amount, err)
		}

		if oor.Min != 1 || oor.Max != 10 || oor.Got != amount {
			t.Fatalf("amount %d: detail %+v", amount, oor)
		}
	}

	free, _ := b.HasFreePull("U")
	if !free || roller.Remaining() != 0 {
		t.Fatalf("range errors must not mutate")
	}

	for amount := 1; amount <= 10; amount++ {
		rolls := make([]int, amount)
		for i := range rolls {
			rolls[i] = 100 // trash, unlimited
		}

		roller.Push(rolls...)

		_, err := b.Deposit("U", amount*10)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}

		_, err = b.Pull("U", amount)
		if err != nil {
			t.Fatalf("amount %d: %v", amount, err)
		}
	}
}

func TestPull_FreePullOncePerDay(t *testing.T) {
	t.Parallel()

	b, _ := newTestBank(t, 200, 200, 200, 200)
	mustJoin(t, b, "U")

	res, err := b.Pull("U", 1)
	if err != nil || !res.FreeUsed || res.Charged != 0 {
		t.Fatalf("first pull: res=%+v err=%v", res, err)
	}

	res, err = b.Pull("U", 1)
	if err != nil || res.FreeUsed || res.Charged != 10 {
		t.Fatalf("second pull: res=%+v err=%v", res, err)
	}

	mustBalance(t, b, "U", 90)

	b.DailyReset()

	res, err = b.Pull("U", 2)
	if err != nil || !res.FreeUsed || res.Charged != 10 {
		t.Fatalf("after reset: res=%+v err=%v", res, err)
	}

	mustBalance(t, b, "U", 80)
}

func TestPull_NukeStopsBatchWithoutRefund(t *testing.T) {
	t.Parallel()

	b, roller := newTestBank(t, 700, 1, 700, 700, 700)
	mustJoin(t, b, "U")

	res, err := b.Pull("U", 5)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if len(res.Outcomes) != 2 || !res.Nuked() {
		t.Fatalf("want 2 outcomes ending on nuke, got %+v", res.Outcomes)
	}

	if roller.Remaining() != 3 {
		t.Fatalf("remaining rolls = %d, want 3", roller.Remaining())
	}

	mustBalance(t, b, "U", 60)

	if pool := b.Pool(); !slices.Equal(pool, defaultSupply) {
		t.Fatalf("pool = %v after nuke", pool)
	}
}

func TestDraw_Loss(t *testing.T) {
	t.Parallel()

	b, _ := newTestBank(t, 10, 10, 10, 10)
	mustJoin(t, b, "U")

	o, err := b.FreePull("U")
	if err != nil {
		t.Fatalf("free pull: %v", err)
	}

	if o.Kind != OutcomeLoss || !o.NothingToLose || o.LostRarest() {
		t.Fatalf("want nothing-to-lose loss, got %+v", o)
	}

	for _, tier := range []gacha.Tier{gacha.TierTrash, gacha.TierRare, gacha.Tier1000Chan} {
		if err := b.AddToCollection("U", tier); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if pool := b.Pool(); pool[gacha.Tier1000Chan] != 0 || pool[gacha.TierRare] != 99 {
		t.Fatalf("seeded pool = %v", pool)
	}

	o, _ = b.FreePull("U")
	if o.Kind != OutcomeLoss || o.Tier != gacha.Tier1000Chan || !o.LostRarest() {
		t.Fatalf("want rarest loss, got %+v", o)
	}

	o, _ = b.FreePull("U")
	if o.Tier != gacha.TierRare || o.LostRarest() {
		t.Fatalf("want rare loss, got %+v", o)
	}

	o, _ = b.FreePull("U")
	if o.Tier != gacha.TierTrash || o.NothingToLose {
		t.Fatalf("want trash loss, got %+v", o)
	}

	if pool := b.Pool(); !slices.Equal(pool, defaultSupply) {
		t.Fatalf("pool = %v, want units returned", pool)
	}

	mustConserve(t, b)
}

func TestDraw_StealAndExhausted(t *testing.T) {
	t.Parallel()

	// U takes the only 1000-chan, V steals it (victim pick 1), then V pulls
	// again with nobody else holding one.
	b, roller := newTestBank(t, 1000, 1000, 1, 1000)
	mustJoin(t, b, "U", "V")

	o, err := b.FreePull("U")
	if err != nil || o.Kind != OutcomeAcquire || o.Tier != gacha.Tier1000Chan {
		t.Fatalf("acquire: %+v %v", o, err)
	}

	o, err = b.FreePull("V")
	if err != nil || o.Kind != OutcomeSteal || o.From != "U" || o.Tier != gacha.Tier1000Chan {
		t.Fatalf("steal: %+v %v", o, err)
	}

	if maxes := roller.Maxes(); !slices.Equal(maxes, []int{1000, 1000, 1}) {
		t.Fatalf("roll maxes = %v", maxes)
	}

	u, _ := b.GetCollection("U")
	v, _ := b.GetCollection("V")

	if u[gacha.Tier1000Chan] != 0 || v[gacha.Tier1000Chan] != 1 {
		t.Fatalf("after steal u=%v v=%v", u, v)
	}

	o, err = b.FreePull("V")
	if err != nil || o.Kind != OutcomeExhausted || o.Tier != gacha.Tier1000Chan {
		t.Fatalf("exhausted: %+v %v", o, err)
	}

	v, _ = b.GetCollection("V")
	if v[gacha.Tier1000Chan] != 1 {
		t.Fatalf("exhausted draw must not mutate: %v", v)
	}

	mustConserve(t, b)
}

func TestDraw_StealPicksAmongHolders(t *testing.T) {
	t.Parallel()

	b, _ := newTestBank(t, 999, 999, 999, 999, 2)
	mustJoin(t, b, "A", "B", "C", "D")

	// A, B and C drain the three SS Ultra Secret Rares.
	for _, id := range []UserID{"A", "B", "C"} {
		o, err := b.FreePull(id)
		if err != nil || o.Kind != OutcomeAcquire {
			t.Fatalf("seed %s: %+v %v", id, o, err)
		}
	}

	// Victims sorted by id: A, B, C; roll 2 picks B.
	o, err := b.FreePull("D")
	if err != nil || o.Kind != OutcomeSteal || o.From != "B" {
		t.Fatalf("steal: %+v %v", o, err)
	}

	mustConserve(t, b)
}

func TestAddToCollection_Exhausted(t *testing.T) {
	t.Parallel()

	b, _ := newTestBank(t)
	mustJoin(t, b, "U")

	err := b.AddToCollection("U", gacha.Tier1000Chan)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}

	err = b.AddToCollection("U", gacha.Tier1000Chan)
	if !errors.Is(err, ErrTierExhausted) {
		t.Fatalf("want ErrTierExhausted, got %v", err)
	}

	err = b.AddToCollection("U", gacha.Tier(42))
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("want ErrOutOfRange, got %v", err)
	}

	mustConserve(t, b)
}
