package ecosystem

// PermissionEdge is one grantAdmin call: Grantor makes Grantee an admin
type PermissionEdge struct {
	Grantor Contract
	Grantee Contract
}

var permissionGraph = []PermissionEdge{
	{UserManager, TokenAdministrator},
	{EventManager, TokenAdministrator},
	{CompanyManager, EventManager},
	{CompanyManager, TokenAdministrator},
	{DAOGovernance, EventManager},
	{DAOGovernance, TokenAdministrator},
	{UnitpointsTokens, TokenAdministrator},
}

// PermissionGraph returns the admin edges in the order they are granted
func PermissionGraph() []PermissionEdge {
	edges := make([]PermissionEdge, len(permissionGraph))
	copy(edges, permissionGraph)
	return edges
}

// WiringCall is one cross-reference setter: Contract.Method(Args...)
type WiringCall struct {
	Contract Contract
	Method   string
	Args     []Contract
}

var wiringCalls = []WiringCall{
	{EventManager, MethodSetDAOGovernance, []Contract{DAOGovernance}},
	{EventManager, MethodSetCompanyManager, []Contract{CompanyManager}},
	{TokenAdministrator, MethodSetAuxiliaryContracts, []Contract{EventManager, UserManager, DAOGovernance}},
}

// WiringCalls returns the setter calls in the order they are issued
func WiringCalls() []WiringCall {
	calls := make([]WiringCall, len(wiringCalls))
	for i, c := range wiringCalls {
		calls[i] = WiringCall{Contract: c.Contract, Method: c.Method, Args: append([]Contract(nil), c.Args...)}
	}
	return calls
}
