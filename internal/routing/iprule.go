package routing

import (
	"fmt"
	"net"

	"github.com/rgnets/wlanpi-netctl/internal/log"
	"github.com/vishvananda/netlink"
)

// IPRule wraps a netlink policy rule together with the handle used to apply it.
type IPRule struct {
	*netlink.Rule
	nl Netlink
}

func (r *IPRule) String() string {
	from := "all"
	if r.Src != nil && r.Src.String() != "<nil>" {
		from = r.Src.String()
	}

	to := "all"
	if r.Dst != nil && r.Dst.String() != "<nil>" {
		to = r.Dst.String()
	}

	return fmt.Sprintf("rule %d: from %s to %s -> table %d",
		r.Priority, from, to, r.Table)
}

// BuildSrcRule builds a "from <src> lookup <table>" rule.
func BuildSrcRule(nl Netlink, src *net.IPNet, table int, priority int) *IPRule {
	rule := netlink.NewRule()
	rule.Family = netlink.FAMILY_V4
	rule.Src = src
	rule.Table = table
	rule.Priority = priority
	return &IPRule{Rule: rule, nl: nl}
}

// BuildDstRule builds a "to <dst> lookup <table>" rule.
func BuildDstRule(nl Netlink, dst *net.IPNet, table int, priority int) *IPRule {
	rule := netlink.NewRule()
	rule.Family = netlink.FAMILY_V4
	rule.Dst = dst
	rule.Table = table
	rule.Priority = priority
	return &IPRule{Rule: rule, nl: nl}
}

// BuildBareRule builds a rule carrying only table and priority, enough for
// deletion where the kernel matches on what is set.
func BuildBareRule(nl Netlink, table int, priority int) *IPRule {
	rule := netlink.NewRule()
	rule.Family = netlink.FAMILY_V4
	rule.Table = table
	rule.Priority = priority
	return &IPRule{Rule: rule, nl: nl}
}

func (r *IPRule) Add() error {
	log.Debugf("Adding IP rule [%v]", r)
	if err := r.nl.RuleAdd(r.Rule); err != nil {
		log.Warnf("Failed to add IP rule [%v]: %v", r, err)
		return err
	}

	return nil
}

// AddIfNotExists adds the rule unless one with the same table and priority is
// already present. Returns true when a rule was actually added.
func (r *IPRule) AddIfNotExists() (bool, error) {
	exists, err := r.IsExists()
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := r.Add(); err != nil {
		return false, err
	}
	return true, nil
}

// IsExists checks the kernel for a rule with the same table and priority.
func (r *IPRule) IsExists() (bool, error) {
	filtered, err := r.nl.RuleListFiltered(r.Family, r.Rule,
		netlink.RT_FILTER_TABLE|netlink.RT_FILTER_PRIORITY)
	if err != nil {
		log.Warnf("Checking if IP rule exists [%v] failed: %v", r, err)
		return false, err
	}
	if len(filtered) > 0 {
		log.Debugf("Checking if IP rule exists [%v]: YES", r)
		return true, nil
	}

	log.Debugf("Checking if IP rule exists [%v]: NO", r)
	return false, nil
}

func (r *IPRule) Del() error {
	log.Debugf("Deleting IP rule [%v]", r)
	if err := r.nl.RuleDel(r.Rule); err != nil {
		log.Warnf("Failed to delete IP rule [%v]: %v", r, err)
		return err
	}

	return nil
}

// DelIfExists deletes the rule when present. Returns true when a rule was
// actually deleted.
func (r *IPRule) DelIfExists() (bool, error) {
	exists, err := r.IsExists()
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := r.Del(); err != nil {
		return false, err
	}
	return true, nil
}

// ListRulesInRange returns every rule whose lookup table falls inside
// [base, base+span).
func ListRulesInRange(nl Netlink, base, span int) ([]*IPRule, error) {
	rules, err := nl.RuleListFiltered(netlink.FAMILY_V4, nil, 0)
	if err != nil {
		log.Warnf("Failed to list IP rules: %v", err)
		return nil, err
	}

	var ipRules []*IPRule
	for i := range rules {
		if rules[i].Table < base || rules[i].Table >= base+span {
			continue
		}
		rule := rules[i]
		ipRules = append(ipRules, &IPRule{Rule: &rule, nl: nl})
	}

	return ipRules, nil
}
