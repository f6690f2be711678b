package moderation

import (
	"context"

	"github.com/sirupsen/logrus"
)

//Reconciler reverts member changes which conflict with the guild's forced nicknames and role blocks
type Reconciler struct {
	policies Policies
	platform Platform
}

//Reconciliation describes the corrections made to a member
type Reconciliation struct {
	NicknameReset bool
	RolesRemoved  []string
}

//Changed returns true if anything was corrected
func (r Reconciliation) Changed() bool {
	return r.NicknameReset || len(r.RolesRemoved) > 0
}

//NewReconciler creates a reconciler
func NewReconciler(policies Policies, platform Platform) *Reconciler {
	return &Reconciler{policies: policies, platform: platform}
}

//Reconcile compares a member against the policy and corrects any divergence. Nothing is issued for a member
//who already conforms, so the update caused by a correction does not trigger another one. Failures are logged
//and not retried.
func (r *Reconciler) Reconcile(ctx context.Context, m Member) Reconciliation {
	var res Reconciliation
	policy := r.policies.Get(m.GuildID)
	log := logrus.WithFields(logrus.Fields{"guild": m.GuildID, "user": m.UserID})

	if forced, ok := policy.ForcedNicknames[m.UserID]; ok && m.Nick != forced {
		if err := r.platform.EditNickname(ctx, m.GuildID, m.UserID, forced); err != nil {
			log.Warnf("Failed to reapply forced nickname due to error %v", err)
		} else {
			log.Infof("Reset nickname %q to forced value %q", m.Nick, forced)
			res.NicknameReset = true
			reconcileCorrections.WithLabelValues("nickname").Inc()
		}
	}

	for _, roleID := range policy.BlockedRoles(m.UserID, m.Roles) {
		if err := r.platform.RemoveRole(ctx, m.GuildID, m.UserID, roleID); err != nil {
			log.Warnf("Failed to remove blocked role %v due to error %v", roleID, err)
			continue
		}
		log.Infof("Removed blocked role %v", roleID)
		res.RolesRemoved = append(res.RolesRemoved, roleID)
		reconcileCorrections.WithLabelValues("role").Inc()
	}
	return res
}
