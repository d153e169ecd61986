// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dispatch mirrors flow table mutations to connected datapaths as
// one-way flow-mod instructions.
package dispatch

import (
	"grimm.is/flowshell/internal/flowtable"
)

// Command is the flow-mod operation.
type Command string

const (
	CommandAdd    Command = "add"
	CommandDelete Command = "delete"
)

// FlowMod is an outbound rule instruction. Delete instructions carry only the
// match; add instructions carry priority, match and actions.
type FlowMod struct {
	Command    Command            `json:"command"`
	DatapathID uint64             `json:"datapath_id"`
	FlowID     string             `json:"flow_id,omitempty"`
	Priority   int                `json:"priority,omitempty"`
	Match      flowtable.Match    `json:"match"`
	Actions    []flowtable.Action `json:"actions,omitempty"`
}

// AddFlowMod builds the add instruction for e.
func AddFlowMod(e flowtable.Entry) FlowMod {
	return FlowMod{
		Command:  CommandAdd,
		FlowID:   e.ID,
		Priority: e.Priority,
		Match:    e.Match,
		Actions:  e.Actions,
	}
}

// DeleteFlowMod builds the delete instruction scoped to e's match.
func DeleteFlowMod(e flowtable.Entry) FlowMod {
	return FlowMod{
		Command: CommandDelete,
		FlowID:  e.ID,
		Match:   e.Match,
	}
}
