package shared

import "golang.org/x/text/language"

var supported = []language.Tag{
	language.English, // fallback
	language.Arabic,
}

var matcher = language.NewMatcher(supported)

var titles = map[Kind]map[language.Tag]string{
	KindValidation: {
		language.English: "Invalid request",
		language.Arabic:  "طلب غير صالح",
	},
	KindPrecondition: {
		language.English: "Operation not allowed in the current state",
		language.Arabic:  "العملية غير مسموح بها في الحالة الحالية",
	},
	KindNotFound: {
		language.English: "Record not found",
		language.Arabic:  "السجل غير موجود",
	},
	KindAlreadyApproved: {
		language.English: "Sale has already been approved",
		language.Arabic:  "تمت الموافقة على الفاتورة مسبقاً",
	},
	KindInsufficientStock: {
		language.English: "Insufficient stock",
		language.Arabic:  "الكمية غير متوفرة في المخزون",
	},
	KindProtectedRecord: {
		language.English: "System-generated record cannot be modified",
		language.Arabic:  "لا يمكن تعديل سجل منشأ تلقائياً",
	},
	KindOverpayment: {
		language.English: "Payment exceeds the remaining amount",
		language.Arabic:  "الدفعة تتجاوز المبلغ المتبقي",
	},
	KindAlreadySettled: {
		language.English: "Receipt is already fully paid",
		language.Arabic:  "تم سداد الإيصال بالكامل",
	},
	KindTreasuryMisconfigured: {
		language.English: "No treasury configured for this payment method",
		language.Arabic:  "لا توجد خزينة مهيأة لطريقة الدفع هذه",
	},
}

// TitleFor resolves the operator-language title for a failure kind from the
// request's Accept-Language header. Unknown kinds fall back to a generic title.
func TitleFor(kind Kind, acceptLanguage string) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	// Matcher may return a regional variant; collapse to the base.
	base, _ := tag.Base()
	resolved := language.English
	if base.String() == "ar" {
		resolved = language.Arabic
	}
	if byLang, ok := titles[kind]; ok {
		if title, ok := byLang[resolved]; ok {
			return title
		}
	}
	if resolved == language.Arabic {
		return "تعذر إتمام العملية"
	}
	return "Operation failed"
}
