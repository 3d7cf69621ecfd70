package auth

const (
	RolePayrollClerk      = "payroll_clerk"
	RolePayrollManager    = "payroll_manager"
	RoleFinanceController = "finance_controller"
	RoleSystemAdmin       = "system_admin"
)

const (
	PermRunsRead           = "payroll.runs.read"
	PermRunsManage         = "payroll.runs.manage"
	PermRunsCalculate      = "payroll.runs.calculate"
	PermRunsApprove        = "payroll.runs.approve"
	PermRunsPost           = "payroll.runs.post"
	PermPeriodsRead        = "payroll.periods.read"
	PermPeriodsManage      = "payroll.periods.manage"
	PermCompensationRead   = "compensation.read"
	PermCompensationManage = "compensation.manage"
	PermTaxRead            = "tax.read"
	PermTaxManage          = "tax.manage"
	PermLedgerRead         = "ledger.read"
	PermAuditRead          = "audit.read"
	PermSystemAdmin        = "admin.system"
)

var DefaultPermissions = []string{
	PermRunsRead,
	PermRunsManage,
	PermRunsCalculate,
	PermRunsApprove,
	PermRunsPost,
	PermPeriodsRead,
	PermPeriodsManage,
	PermCompensationRead,
	PermCompensationManage,
	PermTaxRead,
	PermTaxManage,
	PermLedgerRead,
	PermAuditRead,
	PermSystemAdmin,
}

// RolePermissions is the seeded default grant set. Clerks prepare runs,
// managers approve them, controllers post to the ledger.
var RolePermissions = map[string][]string{
	RolePayrollClerk: {
		PermRunsRead,
		PermRunsManage,
		PermRunsCalculate,
		PermPeriodsRead,
		PermPeriodsManage,
		PermCompensationRead,
		PermCompensationManage,
		PermTaxRead,
	},
	RolePayrollManager: {
		PermRunsRead,
		PermRunsManage,
		PermRunsCalculate,
		PermRunsApprove,
		PermPeriodsRead,
		PermPeriodsManage,
		PermCompensationRead,
		PermCompensationManage,
		PermTaxRead,
		PermTaxManage,
		PermAuditRead,
	},
	RoleFinanceController: {
		PermRunsRead,
		PermRunsManage,
		PermRunsCalculate,
		PermRunsApprove,
		PermRunsPost,
		PermPeriodsRead,
		PermPeriodsManage,
		PermCompensationRead,
		PermCompensationManage,
		PermTaxRead,
		PermTaxManage,
		PermLedgerRead,
		PermAuditRead,
	},
	RoleSystemAdmin: {
		PermSystemAdmin,
	},
}
