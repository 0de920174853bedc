// Package qris builds dynamic QRIS (EMVCo merchant-presented) payloads and
// renders QR images.
package qris

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// Merchant identifies the shop inside the payload.
type Merchant struct {
	Name string
	City string
	// ID is the national merchant id (NMID) issued by the acquirer.
	ID string
	// Category is the ISO 18245 merchant category code.
	Category   string
	PostalCode string
}

const (
	tagFormat         = "00"
	tagInitiation     = "01"
	tagMerchantInfo   = "26"
	tagCategory       = "52"
	tagCurrency       = "53"
	tagAmount         = "54"
	tagCountry        = "58"
	tagName           = "59"
	tagCity           = "60"
	tagPostalCode     = "61"
	tagAdditional     = "62"
	tagCRC            = "63"
	subGUID           = "00"
	subMerchantID     = "01"
	subBillNumber     = "01"
	currencyRupiah    = "360"
	initiationDynamic = "12"
	qrisGUID          = "ID.CO.QRIS.WWW"
)

func tlv(b *strings.Builder, tag, value string) {
	fmt.Fprintf(b, "%s%02d%s", tag, len(value), value)
}

// Payload returns the QRIS string for a single bill. reference is printed as
// the bill number so the payment can be matched to an order.
func Payload(m Merchant, amount decimal.Decimal, reference string) (string, error) {
	switch {
	case m.Name == "" || m.City == "":
		return "", errors.New("merchant name and city are required")
	case !amount.IsPositive():
		return "", errors.New("amount must be positive")
	}
	category := m.Category
	if category == "" {
		category = "5812"
	}

	var acct strings.Builder
	tlv(&acct, subGUID, qrisGUID)
	if m.ID != "" {
		tlv(&acct, subMerchantID, m.ID)
	}

	var add strings.Builder
	if reference != "" {
		tlv(&add, subBillNumber, truncate(reference, 25))
	}

	var b strings.Builder
	tlv(&b, tagFormat, "01")
	tlv(&b, tagInitiation, initiationDynamic)
	tlv(&b, tagMerchantInfo, acct.String())
	tlv(&b, tagCategory, category)
	tlv(&b, tagCurrency, currencyRupiah)
	tlv(&b, tagAmount, amount.StringFixed(0))
	tlv(&b, tagCountry, "ID")
	tlv(&b, tagName, truncate(m.Name, 25))
	tlv(&b, tagCity, truncate(m.City, 15))
	if m.PostalCode != "" {
		tlv(&b, tagPostalCode, m.PostalCode)
	}
	if add.Len() > 0 {
		tlv(&b, tagAdditional, add.String())
	}
	b.WriteString(tagCRC + "04")
	fmt.Fprintf(&b, "%04X", CRC16(b.String()))
	return b.String(), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// CRC16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as required by
// the EMVCo checksum field.
func CRC16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// PNG renders content as a QR code of size×size pixels.
func PNG(content string, size int) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr")
	}
	return png, nil
}
