package i18n

func init() {
	RegisterCatalog("pt-BR", NewCatalog("pt-BR", map[Code]string{
		// Validation errors
		CodeEmptyPlayerID:      "O ID do jogador é obrigatório",
		CodeEmptyClanID:        "O ID do clã é obrigatório",
		CodeEmptyTechID:        "O ID da tecnologia é obrigatório",
		CodeEmptyVoteID:        "O ID da votação é obrigatório",
		CodeEmptyMissileID:     "O ID do míssil é obrigatório",
		CodeEmptyBatteryID:     "O ID da bateria é obrigatório",
		CodeInvalidVoteType:    "Tipo de votação inválido",
		CodeInvalidVotePayload: "Os dados da votação não correspondem ao tipo",
		CodeInvalidAmount:      "O valor deve ser maior que zero",
		CodeInvalidFilter:      "A expressão de filtro é inválida",
		CodeUnknownTech:        "Tecnologia desconhecida: {{.TechID}}",
		CodeUnknownWarhead:     "Tipo de ogiva desconhecido: {{.WarheadType}}",
		CodeUnknownBattery:     "Tipo de bateria desconhecido: {{.BatteryType}}",

		// Research errors
		CodeAlreadyResearching: "Já existe uma pesquisa em andamento",
		CodePrerequisitesUnmet: "Os pré-requisitos de {{.TechID}} não foram atendidos",
		CodeAlreadyCompleted:   "A tecnologia {{.TechID}} já foi pesquisada",
		CodeInsufficientRP:     "Pontos de pesquisa insuficientes: possui {{.Have}}, precisa de {{.Need}}",

		// Vote errors
		CodeNotAMember:             "Você não é membro deste clã",
		CodeDuplicateProposal:      "Já existe uma proposta ativa deste tipo",
		CodeVoteNotActive:          "Esta votação já foi decidida",
		CodeAlreadyVoted:           "Você já votou nesta proposta",
		CodeInsufficientPermission: "Apenas a liderança do clã pode fazer isso",

		// Arsenal errors
		CodeWrongStatus:           "Operação não permitida no estado {{.Status}}",
		CodeAuthorizationRequired: "O lançamento de {{.WarheadType}} exige autorização do clã",
		CodeMissileNotInFlight:    "O míssil não está em voo",
		CodeInsufficientResources: "Recursos insuficientes: possui {{.Have}}, precisa de {{.Need}}",
		CodeTechLocked:            "Requer a tecnologia {{.TechID}}",
		CodeNotOwner:              "Este recurso não pertence a você",

		// Storage errors
		CodeNotFound: "O recurso solicitado não foi encontrado",
		CodeConflict: "O registro foi alterado simultaneamente, tente novamente",
		CodeInternal: "Ocorreu um erro interno",
	}))
}
