package ir

import "fmt"

// UserScope says which users a field value is shared between.
type UserScope string

const (
	UserScopeNone UserScope = "none" // same for every user
	UserScopeOne  UserScope = "one"  // one value per user
	UserScopeAll  UserScope = "all"  // aggregated over users
)

// BlockScope says which blocks a field value is shared between.
type BlockScope string

const (
	BlockScopeUsage      BlockScope = "usage"
	BlockScopeDefinition BlockScope = "definition"
	BlockScopeType       BlockScope = "type"
	BlockScopeAll        BlockScope = "all"
)

// Scope is a named (user, block) pair. Name distinguishes scopes that share
// the same pair, such as children and content.
type Scope struct {
	Name  string     `json:"name"`
	User  UserScope  `json:"user"`
	Block BlockScope `json:"block"`
}

// Named scopes.
var (
	ScopeContent          = Scope{Name: "content", User: UserScopeNone, Block: BlockScopeDefinition}
	ScopeSettings         = Scope{Name: "settings", User: UserScopeNone, Block: BlockScopeUsage}
	ScopeChildren         = Scope{Name: "children", User: UserScopeNone, Block: BlockScopeDefinition}
	ScopeParent           = Scope{Name: "parent", User: UserScopeNone, Block: BlockScopeUsage}
	ScopeUserState        = Scope{Name: "user_state", User: UserScopeOne, Block: BlockScopeUsage}
	ScopePreferences      = Scope{Name: "preferences", User: UserScopeOne, Block: BlockScopeType}
	ScopeUserInfo         = Scope{Name: "user_info", User: UserScopeOne, Block: BlockScopeAll}
	ScopeUserStateSummary = Scope{Name: "user_state_summary", User: UserScopeAll, Block: BlockScopeUsage}
)

var namedScopes = map[string]Scope{
	ScopeContent.Name:          ScopeContent,
	ScopeSettings.Name:         ScopeSettings,
	ScopeChildren.Name:         ScopeChildren,
	ScopeParent.Name:           ScopeParent,
	ScopeUserState.Name:        ScopeUserState,
	ScopePreferences.Name:      ScopePreferences,
	ScopeUserInfo.Name:         ScopeUserInfo,
	ScopeUserStateSummary.Name: ScopeUserStateSummary,
}

// LookupScope returns the named scope.
func LookupScope(name string) (Scope, error) {
	s, ok := namedScopes[name]
	if !ok {
		return Scope{}, fmt.Errorf("unknown scope %q", name)
	}
	return s, nil
}

func (s Scope) String() string {
	return fmt.Sprintf("%s(user=%s, block=%s)", s.Name, s.User, s.Block)
}
