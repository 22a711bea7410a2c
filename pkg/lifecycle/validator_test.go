package lifecycle_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gallerybilling/pkg/lifecycle"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

var (
	testNow   = time.Date(2025, time.April, 15, 9, 0, 0, 0, time.UTC)
	allTiers  = []plan.Tier{plan.TierFree, plan.TierStarter, plan.TierPlus, plan.TierPro, plan.TierUltimate}
	validator = lifecycle.NewValidator(plan.MustDefault())
)

// paidState is an active paid subscription with no flags raised.
func paidState(tier plan.Tier) subscription.State {
	return subscription.State{
		UserID:                 uuid.New(),
		CurrentPlan:            tier,
		Status:                 subscription.StatusActive,
		HasGatewaySubscription: true,
		PeriodEnd:              testNow.Add(10 * 24 * time.Hour),
		Now:                    testNow,
	}
}

func freeState() subscription.State {
	return subscription.State{UserID: uuid.New(), CurrentPlan: plan.TierFree, Now: testNow}
}

func tier(t plan.Tier) *plan.Tier { return &t }

func TestValidator_Subscribe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		state  subscription.State
		target plan.Tier
		code   lifecycle.Code
	}{
		{"free user subscribes", freeState(), plan.TierPlus, lifecycle.CodeOK},
		{"unknown plan", freeState(), "gold", lifecycle.CodeInvalidPlan},
		{"free target", freeState(), plan.TierFree, lifecycle.CodeInvalidSubscription},
		{"already paid", paidState(plan.TierStarter), plan.TierPro, lifecycle.CodeAlreadySubscribed},
		{"unknown plan wins over already subscribed", paidState(plan.TierStarter), "gold", lifecycle.CodeInvalidPlan},
		{"paid plan without gateway id can subscribe", func() subscription.State {
			s := paidState(plan.TierStarter)
			s.HasGatewaySubscription = false
			return s
		}(), plan.TierPlus, lifecycle.CodeOK},
		{"processing", func() subscription.State {
			s := freeState()
			s.Processing = true
			return s
		}(), plan.TierPlus, lifecycle.CodeProcessingChange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := validator.Subscribe(tt.state, tt.target)
			assert.Equal(t, tt.code, d.Code, d.Reason)
			assert.Equal(t, tt.code == lifecycle.CodeOK, d.Valid)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestValidator_Upgrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		state  func() subscription.State
		target plan.Tier
		code   lifecycle.Code
	}{
		{"starter to pro", func() subscription.State { return paidState(plan.TierStarter) }, plan.TierPro, lifecycle.CodeOK},
		{"unknown target", func() subscription.State { return paidState(plan.TierStarter) }, "gold", lifecycle.CodeInvalidPlan},
		{"same tier", func() subscription.State { return paidState(plan.TierPlus) }, plan.TierPlus, lifecycle.CodeInvalidUpgrade},
		{"lower tier", func() subscription.State { return paidState(plan.TierPro) }, plan.TierStarter, lifecycle.CodeInvalidUpgrade},
		{"unknown current plan", func() subscription.State { return paidState("legacy") }, plan.TierPro, lifecycle.CodeInvalidPlan},
		{"cancel pending", func() subscription.State {
			s := paidState(plan.TierStarter)
			s.CancelPending = true
			s.Processing = true
			return s
		}, plan.TierPro, lifecycle.CodeSubscriptionCanceled},
		{"processing", func() subscription.State {
			s := paidState(plan.TierStarter)
			s.Processing = true
			s.HasOpenRefund = true
			return s
		}, plan.TierPro, lifecycle.CodeProcessingChange},
		{"refund open", func() subscription.State {
			s := paidState(plan.TierStarter)
			s.HasOpenRefund = true
			s.OpenRefundStatus = subscription.RefundPending
			return s
		}, plan.TierPro, lifecycle.CodeRefundPending},
		{"invalid upgrade beats cancel pending", func() subscription.State {
			s := paidState(plan.TierPro)
			s.CancelPending = true
			return s
		}, plan.TierPlus, lifecycle.CodeInvalidUpgrade},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := validator.Upgrade(tt.state(), tt.target)
			assert.Equal(t, tt.code, d.Code, d.Reason)
			assert.Equal(t, tt.code == lifecycle.CodeOK, d.Valid)
		})
	}
}

func TestValidator_Downgrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		state  func() subscription.State
		target plan.Tier
		code   lifecycle.Code
	}{
		{"pro to plus", func() subscription.State { return paidState(plan.TierPro) }, plan.TierPlus, lifecycle.CodeOK},
		{"pro to free", func() subscription.State { return paidState(plan.TierPro) }, plan.TierFree, lifecycle.CodeOK},
		{"unknown target", func() subscription.State { return paidState(plan.TierPro) }, "", lifecycle.CodeInvalidPlan},
		{"higher tier", func() subscription.State { return paidState(plan.TierPlus) }, plan.TierPro, lifecycle.CodeInvalidDowngrade},
		{"same tier", func() subscription.State { return paidState(plan.TierPlus) }, plan.TierPlus, lifecycle.CodeInvalidDowngrade},
		{"pending downgrade to same tier", func() subscription.State {
			s := paidState(plan.TierPro)
			s.PendingPlan = plan.TierPlus
			return s
		}, plan.TierPlus, lifecycle.CodePendingDowngrade},
		{"pending downgrade to lower tier", func() subscription.State {
			s := paidState(plan.TierPro)
			s.PendingPlan = plan.TierStarter
			return s
		}, plan.TierPlus, lifecycle.CodePendingDowngrade},
		{"deeper than pending downgrade", func() subscription.State {
			s := paidState(plan.TierPro)
			s.PendingPlan = plan.TierPlus
			return s
		}, plan.TierStarter, lifecycle.CodeOK},
		{"processing", func() subscription.State {
			s := paidState(plan.TierPro)
			s.Processing = true
			s.CancelPending = true
			return s
		}, plan.TierPlus, lifecycle.CodeProcessingChange},
		{"cancel pending", func() subscription.State {
			s := paidState(plan.TierPro)
			s.CancelPending = true
			s.HasOpenRefund = true
			return s
		}, plan.TierPlus, lifecycle.CodeSubscriptionCanceled},
		{"cancel pending with free scheduled", func() subscription.State {
			s := paidState(plan.TierPro)
			s.CancelPending = true
			s.PendingPlan = plan.TierFree
			return s
		}, plan.TierPlus, lifecycle.CodePendingDowngrade},
		{"refund open", func() subscription.State {
			s := paidState(plan.TierPro)
			s.HasOpenRefund = true
			s.OpenRefundStatus = subscription.RefundApproved
			return s
		}, plan.TierPlus, lifecycle.CodeRefundPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := validator.Downgrade(tt.state(), tt.target)
			assert.Equal(t, tt.code, d.Code, d.Reason)
			assert.Equal(t, tt.code == lifecycle.CodeOK, d.Valid)
		})
	}
}

func TestValidator_Cancel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state func() subscription.State
		code  lifecycle.Code
	}{
		{"paid", func() subscription.State { return paidState(plan.TierPlus) }, lifecycle.CodeOK},
		{"free", func() subscription.State { return freeState() }, lifecycle.CodeNoSubscription},
		{"already canceled", func() subscription.State {
			s := paidState(plan.TierPlus)
			s.CancelPending = true
			s.Processing = true
			return s
		}, lifecycle.CodeAlreadyCanceled},
		{"processing", func() subscription.State {
			s := paidState(plan.TierPlus)
			s.Processing = true
			s.HasGatewaySubscription = false
			return s
		}, lifecycle.CodeProcessingChange},
		{"no gateway subscription", func() subscription.State {
			s := paidState(plan.TierPlus)
			s.HasGatewaySubscription = false
			s.HasOpenRefund = true
			return s
		}, lifecycle.CodeNoSubscription},
		{"refund open", func() subscription.State {
			s := paidState(plan.TierPlus)
			s.HasOpenRefund = true
			s.OpenRefundStatus = subscription.RefundPending
			return s
		}, lifecycle.CodeRefundPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := validator.Cancel(tt.state())
			assert.Equal(t, tt.code, d.Code, d.Reason)
		})
	}
}

func TestValidator_Reactivate(t *testing.T) {
	t.Parallel()

	canceled := func() subscription.State {
		s := paidState(plan.TierPlus)
		s.CancelPending = true
		s.PendingPlan = plan.TierFree
		return s
	}

	t.Run("within period", func(t *testing.T) {
		t.Parallel()
		d := validator.Reactivate(canceled())
		assert.True(t, d.Valid, d.Reason)
		assert.Equal(t, lifecycle.CodeOK, d.Code)
	})

	t.Run("not canceled", func(t *testing.T) {
		t.Parallel()
		s := paidState(plan.TierPlus)
		s.Processing = true
		assert.Equal(t, lifecycle.CodeNotCanceled, validator.Reactivate(s).Code)
	})

	t.Run("one nanosecond before period end", func(t *testing.T) {
		t.Parallel()
		s := canceled()
		s.PeriodEnd = s.Now.Add(time.Nanosecond)
		assert.True(t, validator.Reactivate(s).Valid)
	})

	t.Run("at period end", func(t *testing.T) {
		t.Parallel()
		s := canceled()
		s.PeriodEnd = s.Now
		d := validator.Reactivate(s)
		assert.False(t, d.Valid)
		assert.Equal(t, lifecycle.CodePeriodEnded, d.Code)
	})

	t.Run("after period end", func(t *testing.T) {
		t.Parallel()
		s := canceled()
		s.PeriodEnd = s.Now.Add(-time.Second)
		s.Processing = true
		assert.Equal(t, lifecycle.CodePeriodEnded, validator.Reactivate(s).Code)
	})

	t.Run("processing", func(t *testing.T) {
		t.Parallel()
		s := canceled()
		s.Processing = true
		assert.Equal(t, lifecycle.CodeProcessingChange, validator.Reactivate(s).Code)
	})

	t.Run("no gateway subscription", func(t *testing.T) {
		t.Parallel()
		s := canceled()
		s.HasGatewaySubscription = false
		assert.Equal(t, lifecycle.CodeNoSubscription, validator.Reactivate(s).Code)
	})
}

func TestValidator_Refund(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state func() subscription.State
		code  lifecycle.Code
	}{
		{"paid", func() subscription.State { return paidState(plan.TierPro) }, lifecycle.CodeOK},
		{"free", func() subscription.State {
			s := freeState()
			s.HasOpenRefund = true
			return s
		}, lifecycle.CodeNoSubscription},
		{"refund exists", func() subscription.State {
			s := paidState(plan.TierPro)
			s.HasOpenRefund = true
			s.OpenRefundStatus = subscription.RefundPending
			s.Processing = true
			return s
		}, lifecycle.CodeRefundExists},
		{"processing", func() subscription.State {
			s := paidState(plan.TierPro)
			s.Processing = true
			return s
		}, lifecycle.CodeProcessingChange},
		{"no gateway subscription", func() subscription.State {
			s := paidState(plan.TierPro)
			s.HasGatewaySubscription = false
			return s
		}, lifecycle.CodeNoSubscription},
		{"cancel pending", func() subscription.State {
			s := paidState(plan.TierPro)
			s.CancelPending = true
			return s
		}, lifecycle.CodeSubscriptionCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := validator.Refund(tt.state())
			assert.Equal(t, tt.code, d.Code, d.Reason)
		})
	}
}

func TestValidator_RefundIgnoresTerminalRefunds(t *testing.T) {
	t.Parallel()

	rec := &subscription.Record{
		Plan:                  plan.TierPlus,
		Status:                subscription.StatusActive,
		GatewaySubscriptionID: "sub_1",
		CurrentPeriodEnd:      testNow.Add(24 * time.Hour),
	}
	terminal := []subscription.RefundRecord{
		{Status: subscription.RefundRejected},
		{Status: subscription.RefundProcessed},
		{Status: subscription.RefundCancelled},
		{Status: subscription.RefundRejected},
	}

	s := subscription.NewState(subscription.User{ID: uuid.New()}, rec, terminal, testNow)
	assert.True(t, validator.Refund(s).Valid)

	for _, open := range []subscription.RefundStatus{subscription.RefundPending, subscription.RefundApproved} {
		s := subscription.NewState(subscription.User{ID: uuid.New()}, rec,
			append(terminal, subscription.RefundRecord{Status: open}), testNow)
		d := validator.Refund(s)
		assert.False(t, d.Valid)
		assert.Equal(t, lifecycle.CodeRefundExists, d.Code)
	}
}

func TestValidator_ValidateTransition(t *testing.T) {
	t.Parallel()

	t.Run("unknown action", func(t *testing.T) {
		t.Parallel()
		d := validator.ValidateTransition(paidState(plan.TierPlus), "pause", nil)
		assert.Equal(t, lifecycle.CodeInvalidAction, d.Code)
		assert.False(t, d.Valid)
	})

	t.Run("missing plan", func(t *testing.T) {
		t.Parallel()
		for _, a := range []lifecycle.Action{lifecycle.ActionSubscribe, lifecycle.ActionUpgrade, lifecycle.ActionDowngrade} {
			d := validator.ValidateTransition(paidState(plan.TierPlus), a, nil)
			assert.Equal(t, lifecycle.CodeMissingPlan, d.Code, a)

			d = validator.ValidateTransition(paidState(plan.TierPlus), a, tier(""))
			assert.Equal(t, lifecycle.CodeMissingPlan, d.Code, a)
		}
	})

	t.Run("dispatch", func(t *testing.T) {
		t.Parallel()
		s := paidState(plan.TierPlus)
		assert.Equal(t, validator.Upgrade(s, plan.TierPro), validator.ValidateTransition(s, lifecycle.ActionUpgrade, tier(plan.TierPro)))
		assert.Equal(t, validator.Downgrade(s, plan.TierStarter), validator.ValidateTransition(s, lifecycle.ActionDowngrade, tier(plan.TierStarter)))
		assert.Equal(t, validator.Cancel(s), validator.ValidateTransition(s, lifecycle.ActionCancel, tier(plan.TierPro)))
		assert.Equal(t, validator.Refund(s), validator.ValidateTransition(s, lifecycle.ActionRefund, nil))
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		s := paidState(plan.TierPlus)
		s.CancelPending = true
		for _, a := range lifecycle.Actions() {
			first, err := json.Marshal(validator.ValidateTransition(s, a, tier(plan.TierPro)))
			require.NoError(t, err)
			second, err := json.Marshal(validator.ValidateTransition(s, a, tier(plan.TierPro)))
			require.NoError(t, err)
			assert.Equal(t, first, second, a)
		}
	})
}

func TestValidator_TotalOrderProperty(t *testing.T) {
	t.Parallel()
	catalog := plan.MustDefault()

	for _, p := range allTiers {
		for _, q := range allTiers {
			s := paidState(p)
			lp, _ := catalog.LevelOf(p)
			lq, _ := catalog.LevelOf(q)

			up := validator.ValidateTransition(s, lifecycle.ActionUpgrade, tier(q))
			assert.Equal(t, lq > lp, up.Valid, "upgrade %s -> %s", p, q)

			down := validator.ValidateTransition(s, lifecycle.ActionDowngrade, tier(q))
			assert.Equal(t, lq < lp, down.Valid, "downgrade %s -> %s", p, q)
		}
	}
}

// flagStates enumerates every combination of the boolean state flags on each tier.
func flagStates() []subscription.State {
	var out []subscription.State
	for _, current := range allTiers {
		for mask := range 32 {
			s := paidState(current)
			s.HasGatewaySubscription = mask&1 != 0
			s.CancelPending = mask&2 != 0
			s.Processing = mask&4 != 0
			s.HasOpenRefund = mask&8 != 0
			if mask&16 != 0 {
				s.PeriodEnd = s.Now.Add(-time.Hour)
			}
			out = append(out, s)
		}
	}
	return out
}

func TestValidator_MutualExclusion(t *testing.T) {
	t.Parallel()

	for _, s := range flagStates() {
		for _, a := range lifecycle.Actions() {
			for _, target := range allTiers {
				d := validator.ValidateTransition(s, a, tier(target))
				if s.Processing {
					assert.False(t, d.Valid, "%s to %s must not pass while processing: %+v", a, target, s)
				}
				if s.CancelPending && a != lifecycle.ActionReactivate {
					assert.False(t, d.Valid, "%s to %s must not pass while cancel is pending: %+v", a, target, s)
				}
			}
		}
	}
}

func TestValidator_AllowedTransitions(t *testing.T) {
	t.Parallel()

	t.Run("matches probing", func(t *testing.T) {
		t.Parallel()
		for _, s := range flagStates() {
			got := validator.AllowedTransitions(s)
			for _, o := range got {
				target := o.Target
				var tp *plan.Tier
				if o.Action.RequiresPlan() {
					tp = &target
				}
				assert.True(t, validator.ValidateTransition(s, o.Action, tp).Valid)
				assert.NotEmpty(t, o.Description)
			}

			count := 0
			for _, a := range lifecycle.Actions() {
				if !a.RequiresPlan() {
					if validator.ValidateTransition(s, a, nil).Valid {
						count++
					}
					continue
				}
				for _, target := range allTiers {
					if validator.ValidateTransition(s, a, tier(target)).Valid {
						count++
					}
				}
			}
			assert.Len(t, got, count)
		}
	})

	t.Run("plus subscriber", func(t *testing.T) {
		t.Parallel()
		got := validator.AllowedTransitions(paidState(plan.TierPlus))
		want := []lifecycle.Option{
			{Action: lifecycle.ActionUpgrade, Target: plan.TierPro},
			{Action: lifecycle.ActionUpgrade, Target: plan.TierUltimate},
			{Action: lifecycle.ActionDowngrade, Target: plan.TierFree},
			{Action: lifecycle.ActionDowngrade, Target: plan.TierStarter},
			{Action: lifecycle.ActionCancel},
			{Action: lifecycle.ActionRefund},
		}
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Action, got[i].Action)
			assert.Equal(t, want[i].Target, got[i].Target)
		}
		assert.True(t, validator.CanFire(paidState(plan.TierPlus), lifecycle.ActionCancel))
		assert.False(t, validator.CanFire(paidState(plan.TierPlus), lifecycle.ActionReactivate))
	})

	t.Run("cancel pending only offers reactivate", func(t *testing.T) {
		t.Parallel()
		s := paidState(plan.TierPro)
		s.CancelPending = true
		s.PendingPlan = plan.TierFree
		got := validator.AllowedTransitions(s)
		require.Len(t, got, 1)
		assert.Equal(t, lifecycle.ActionReactivate, got[0].Action)
	})

	t.Run("free user", func(t *testing.T) {
		t.Parallel()
		got := validator.AllowedTransitions(freeState())
		var subscribe, upgrade int
		for _, o := range got {
			switch o.Action {
			case lifecycle.ActionSubscribe:
				subscribe++
			case lifecycle.ActionUpgrade:
				upgrade++
			default:
				t.Errorf("unexpected option %+v", o)
			}
		}
		assert.Equal(t, 4, subscribe)
		assert.Equal(t, 4, upgrade)
	})
}

func TestNewValidator_PanicsOnNilCatalog(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { lifecycle.NewValidator(nil) })
}
