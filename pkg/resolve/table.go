package resolve

// defaultTable is the built-in purpose catalog. Ordering within each
// purpose is load-bearing: the most conventional attribute wins, and later
// entries are progressively looser fallbacks. Carriers layer their own
// candidates on top via Extend.
func defaultTable() map[string][]Candidate {
	return map[string][]Candidate{
		"firstName": {
			{Tag: "input", Expr: "name*=first"},
			{Tag: "input", Expr: "id*=first"},
			{Tag: "input", Expr: "placeholder*=first name"},
			{Tag: "input", Expr: "autocomplete=given-name"},
		},
		"lastName": {
			{Tag: "input", Expr: "name*=last"},
			{Tag: "input", Expr: "id*=last"},
			{Tag: "input", Expr: "placeholder*=last name"},
			{Tag: "input", Expr: "autocomplete=family-name"},
		},
		"email": {
			{Tag: "input", Expr: "type=email"},
			{Tag: "input", Expr: "name*=email"},
			{Tag: "input", Expr: "id*=email"},
			{Tag: "input", Expr: "placeholder*=email"},
		},
		"phone": {
			{Tag: "input", Expr: "type=tel"},
			{Tag: "input", Expr: "name*=phone"},
			{Tag: "input", Expr: "id*=phone"},
			{Tag: "input", Expr: "placeholder*=phone"},
		},
		"dateOfBirth": {
			{Tag: "input", Expr: "name*=birth"},
			{Tag: "input", Expr: "name*=dob"},
			{Tag: "input", Expr: "id*=dob"},
			{Tag: "input", Expr: "placeholder*=mm/dd"},
			{Tag: "input", Expr: "autocomplete=bday"},
		},
		"street": {
			{Tag: "input", Expr: "name*=street"},
			{Tag: "input", Expr: "name*=address1"},
			{Tag: "input", Expr: "name*=addressline1"},
			{Tag: "input", Expr: "id*=street"},
			{Tag: "input", Expr: "placeholder*=street"},
			{Tag: "input", Expr: "autocomplete=address-line1"},
		},
		"apt": {
			{Tag: "input", Expr: "name*=apt"},
			{Tag: "input", Expr: "name*=unit"},
			{Tag: "input", Expr: "name*=address2"},
			{Tag: "input", Expr: "placeholder*=apt"},
		},
		"city": {
			{Tag: "input", Expr: "name*=city"},
			{Tag: "input", Expr: "id*=city"},
			{Tag: "input", Expr: "placeholder*=city"},
		},
		"state": {
			{Tag: "select", Expr: "name*=state"},
			{Tag: "select", Expr: "id*=state"},
			{Tag: "input", Expr: "name*=state"},
		},
		"zipcode": {
			{Tag: "input", Expr: "name*=zip"},
			{Tag: "input", Expr: "name*=postal"},
			{Tag: "input", Expr: "id*=zip"},
			{Tag: "input", Expr: "placeholder*=zip"},
			{Tag: "input", Expr: "autocomplete=postal-code"},
		},
		"gender": {
			{Tag: "select", Expr: "name*=gender"},
			{Tag: "input", Expr: "name*=gender"},
			{Tag: "select", Expr: "name*=sex"},
		},
		"maritalStatus": {
			{Tag: "select", Expr: "name*=marital"},
			{Tag: "select", Expr: "id*=marital"},
			{Tag: "input", Expr: "name*=marital"},
		},
		"vehicleYear": {
			{Tag: "select", Expr: "name*=year"},
			{Tag: "select", Expr: "id*=year"},
			{Tag: "input", Expr: "name*=year"},
		},
		"vehicleMake": {
			{Tag: "select", Expr: "name*=make"},
			{Tag: "select", Expr: "id*=make"},
			{Tag: "input", Expr: "name*=make"},
		},
		"vehicleModel": {
			{Tag: "select", Expr: "name*=model"},
			{Tag: "select", Expr: "id*=model"},
			{Tag: "input", Expr: "name*=model"},
		},
		"vehicleOwnership": {
			{Tag: "select", Expr: "name*=owner"},
			{Tag: "select", Expr: "name*=finance"},
		},
		"priorInsurance": {
			{Tag: "select", Expr: "name*=insur"},
			{Tag: "select", Expr: "name*=carrier"},
			{Tag: "input", Expr: "name*=insur"},
		},
		"licenseAge": {
			{Tag: "select", Expr: "name*=license"},
			{Tag: "input", Expr: "name*=license"},
		},
		"continue": {
			{Tag: "button", Expr: "type=submit"},
			{Tag: "button", Expr: "id*=continue"},
			{Tag: "button", Expr: "id*=next"},
			{Tag: "button", Expr: "data-testid*=continue"},
			{Tag: "input", Expr: "type=submit"},
		},
	}
}
