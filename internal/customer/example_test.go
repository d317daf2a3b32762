package customer_test

import (
	"fmt"

	"rmasync/internal/customer"
)

func ExampleCustomerNumber() {
	fmt.Println(customer.CustomerNumber("C", 17))
	// Output: C17
}

func ExampleSalutation() {
	fmt.Println(customer.Salutation(1))
	fmt.Println(customer.Salutation(0))
	// Output:
	// Mr. M
	// Ms. F
}

func ExampleCountryName() {
	fmt.Println(customer.CountryName("CH"))
	fmt.Println(customer.CountryName("??"))
	// Output:
	// Switzerland
	// ??
}
