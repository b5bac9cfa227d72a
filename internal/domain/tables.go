package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOprLog{},
	// Gateway
	&GatewayConfig{},
	&Instance{},
}
