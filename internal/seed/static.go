// ABOUTME: Placeholder contacts used when neither mock rows nor AI are available.
// ABOUTME: Names and email share one five-digit number so records are easy to correlate.

package seed

import "fmt"

func (g *Generator) staticContact() ContactData {
	n := g.faker.Number(10000, 99999)
	return ContactData{
		FirstName: fmt.Sprintf("First %d", n),
		LastName:  fmt.Sprintf("Last %d", n),
		Email:     fmt.Sprintf("%duser@example.com", n),
	}
}
