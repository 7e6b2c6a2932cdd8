// SPDX-FileCopyrightText: (C) 2025 Red Hat Inc.
// SPDX-License-Identifier: Apache 2.0

package certs

import (
	"crypto/x509/pkix"
	"encoding/asn1"
)

// DistinguishedName is an ordered sequence of (attribute-type, value)
// pairs, value-equal when the sequences are pointwise equal.
type DistinguishedName []pkix.AttributeTypeAndValue

var (
	oidCommonName         = asn1.ObjectIdentifier{2, 5, 4, 3}
	oidOrganization       = asn1.ObjectIdentifier{2, 5, 4, 10}
	oidOrganizationalUnit = asn1.ObjectIdentifier{2, 5, 4, 11}
	oidCountry            = asn1.ObjectIdentifier{2, 5, 4, 6}
)

// NewDN builds a DistinguishedName from an ordered list of attr/value pairs
// appended with AppendCN/AppendO/AppendOU/Append.
func NewDN() DistinguishedName { return nil }

// Append adds an arbitrary attribute (by OID) to the end of the DN.
func (dn DistinguishedName) Append(oid asn1.ObjectIdentifier, value string) DistinguishedName {
	return append(dn, pkix.AttributeTypeAndValue{Type: oid, Value: value})
}

// AppendCN appends a commonName (cn) attribute.
func (dn DistinguishedName) AppendCN(value string) DistinguishedName {
	return dn.Append(oidCommonName, value)
}

// AppendO appends an organization (o) attribute.
func (dn DistinguishedName) AppendO(value string) DistinguishedName {
	return dn.Append(oidOrganization, value)
}

// AppendOU appends an organizationalUnit (ou) attribute.
func (dn DistinguishedName) AppendOU(value string) DistinguishedName {
	return dn.Append(oidOrganizationalUnit, value)
}

// AppendCountry appends a country (c) attribute.
func (dn DistinguishedName) AppendCountry(value string) DistinguishedName {
	return dn.Append(oidCountry, value)
}

// Equal reports whether two DNs are pointwise equal, in order.
func (dn DistinguishedName) Equal(o DistinguishedName) bool {
	if len(dn) != len(o) {
		return false
	}
	for i := range dn {
		if !dn[i].Type.Equal(o[i].Type) {
			return false
		}
		av, aok := dn[i].Value.(string)
		bv, bok := o[i].Value.(string)
		if aok && bok {
			if av != bv {
				return false
			}
			continue
		}
		if dn[i].Value != o[i].Value {
			return false
		}
	}
	return true
}

func toPkixName(dn DistinguishedName) pkix.Name {
	return pkix.Name{ExtraNames: dn}
}

func fromPkixName(name pkix.Name) DistinguishedName {
	return DistinguishedName(name.Names)
}
