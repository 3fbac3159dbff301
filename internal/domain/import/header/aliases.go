package header

// TenantAliases is the alias table of the tenant (locatário) spreadsheet
// exported by the property management systems.
func TenantAliases() AliasTable {
	return AliasTable{
		"inquilino_nome":         "segurado_nome",
		"inquilino_pessoa":       "segurado_tipo",
		"inquilino_doc":          "segurado_cpf_cnpj",
		"cidade":                 "segurado_cidade",
		"estado":                 "segurado_uf",
		"bairro":                 "segurado_bairro",
		"cep":                    "segurado_cep",
		"endereco":               "segurado_endereco",
		"numero":                 "segurado_numero",
		"imovel_codigo":          "id",
		"incendio":               "coberturas_incendio",
		"incendio_conteudo":      "coberturas_incendio_conteudo",
		"vendaval":               "coberturas_vendaval",
		"perda_aluguel":          "coberturas_perda_aluguel",
		"danos_eletricos":        "coberturas_danos_eletricos",
		"dano_eletrico":          "coberturas_danos_eletricos",
		"responsabilidade_civil": "coberturas_responsabilidade_civil",
	}
}

// PolicyAliases is the alias table of the policy (apólice) spreadsheet.
func PolicyAliases() AliasTable {
	return AliasTable{
		"cpf_cnpj":           "cpf_cnpj_locatario",
		"cpf":                "cpf_cnpj_locatario",
		"cnpj":               "cpf_cnpj_locatario",
		"cpf_cnpj_locatario": "cpf_cnpj_locatario",
		"endereco":           "endereco",
		"data_apolice":       "data_apolice",
		"data":               "data_apolice",
		"nome":               "segurado_nome",
		"segurado_nome":      "segurado_nome",
	}
}
