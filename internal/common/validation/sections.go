package validation

import "loan-intake/internal/models"

var sectionSchemas = map[string]string{
	string(models.SectionProperty): `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["propertyType", "purpose", "estimatedValue", "postcode"],
		"properties": {
			"propertyType":   {"type": "string", "enum": ["house", "apartment", "townhouse", "land"]},
			"purpose":        {"type": "string", "enum": ["owner_occupied", "investment"]},
			"estimatedValue": {"type": "number", "exclusiveMinimum": 0},
			"address":        {"type": "string", "maxLength": 200},
			"postcode":       {"type": "string", "pattern": "^[0-9]{4}$"},
			"state":          {"type": "string", "enum": ["NSW", "VIC", "QLD", "WA", "SA", "TAS", "ACT", "NT"]},
			"isFirstHome":    {"type": "boolean"}
		}
	}`,
	string(models.SectionPersonal): `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["firstName", "lastName", "email", "phone", "dateOfBirth"],
		"properties": {
			"firstName":     {"type": "string", "minLength": 1, "maxLength": 80},
			"lastName":      {"type": "string", "minLength": 1, "maxLength": 80},
			"email":         {"type": "string", "format": "email"},
			"phone":         {"type": "string", "pattern": "^\\+?[0-9 ]{8,15}$"},
			"dateOfBirth":   {"type": "string", "format": "date"},
			"maritalStatus": {"type": "string", "enum": ["single", "married", "de_facto", "separated", "widowed"]},
			"dependants":    {"type": "integer", "minimum": 0},
			"hasPartner":    {"type": "boolean"},
			"partner": {
				"type": "object",
				"required": ["firstName", "lastName"],
				"properties": {
					"firstName":    {"type": "string", "minLength": 1},
					"lastName":     {"type": "string", "minLength": 1},
					"annualIncome": {"type": "number", "minimum": 0}
				}
			}
		},
		"if":   {"properties": {"hasPartner": {"const": true}}, "required": ["hasPartner"]},
		"then": {"required": ["partner"]}
	}`,
	string(models.SectionEmployment): `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["employmentType", "annualIncome"],
		"properties": {
			"employmentType":  {"type": "string", "enum": ["full_time", "part_time", "casual", "contract", "self_employed"]},
			"employer":        {"type": "string", "maxLength": 120},
			"yearsInRole":     {"type": "number", "minimum": 0},
			"annualIncome":    {"type": "number", "minimum": 0},
			"isBusinessOwner": {"type": "boolean"},
			"business": {
				"type": "object",
				"required": ["businessName", "abn"],
				"properties": {
					"businessName": {"type": "string", "minLength": 1},
					"abn":          {"type": "string", "pattern": "^[0-9]{11}$"},
					"yearsTrading": {"type": "number", "minimum": 0}
				}
			}
		},
		"if":   {"properties": {"isBusinessOwner": {"const": true}}, "required": ["isBusinessOwner"]},
		"then": {"required": ["business"]}
	}`,
	string(models.SectionFinancial): `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["savings", "monthlyExpenses"],
		"properties": {
			"savings":         {"type": "number", "minimum": 0},
			"monthlyExpenses": {"type": "number", "minimum": 0},
			"creditCardLimit": {"type": "number", "minimum": 0},
			"liabilities": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["type", "balance"],
					"properties": {
						"type":    {"type": "string", "enum": ["mortgage", "personal_loan", "car_loan", "credit_card", "other"]},
						"balance": {"type": "number", "minimum": 0}
					}
				}
			}
		}
	}`,
	string(models.SectionLoanRequirements): `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["loanAmount", "loanTermYears", "loanPurpose"],
		"properties": {
			"loanAmount":     {"type": "number", "exclusiveMinimum": 0},
			"loanTermYears":  {"type": "integer", "minimum": 1, "maximum": 40},
			"loanPurpose":    {"type": "string", "enum": ["purchase", "refinance", "construction"]},
			"repaymentType":  {"type": "string", "enum": ["principal_and_interest", "interest_only"]},
			"rateType":       {"type": "string", "enum": ["fixed", "variable", "split"]},
			"settlementDays": {"type": "integer", "minimum": 0}
		}
	}`,
	string(models.SectionAdditionalFeatures): `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {
			"offsetAccount":        {"type": "boolean"},
			"redrawFacility":       {"type": "boolean"},
			"extraRepayments":      {"type": "boolean"},
			"fixedRatePeriodYears": {"type": "integer", "minimum": 0, "maximum": 5},
			"notes":                {"type": "string", "maxLength": 1000}
		}
	}`,
}
